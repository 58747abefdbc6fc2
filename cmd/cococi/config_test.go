package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestDefineEverything(t *testing.T) {
	flags := pflag.NewFlagSet("testflags", pflag.ContinueOnError)
	defineConfigFlags(flags, viper.New(), func(err error) {
		t.Error(err)
	})
}
