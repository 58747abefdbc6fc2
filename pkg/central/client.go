package central

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/http/httperror"
)

const (
	DefaultBaseURL = "https://central.sonatype.com/api/v1/publisher"

	// PublishingAutomatic asks Central to release the bundle as soon
	// as it validates, rather than waiting for a manual release.
	PublishingAutomatic = "AUTOMATIC"
)

// ErrListUnavailable is returned by List when the server has no
// listing endpoint; deployments can then only be managed by ID.
var ErrListUnavailable = errors.New("deployment listing is not available; use deployment IDs from CI logs")

type Client struct {
	client   *http.Client
	creds    transport.Credentials
	router   *mux.Router
	endpoint string
}

func New(c *http.Client, endpoint string, creds transport.Credentials) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	if creds == nil {
		creds = transport.UserToken{}
	}
	return &Client{
		client:   c,
		creds:    creds,
		router:   transport.NewCentralRouter(),
		endpoint: endpoint,
	}
}

// Upload sends the bundle at bundlePath for automatic publishing and
// returns the ID Central assigns to it. Anything but 201 Created is
// an error.
func (c *Client) Upload(ctx context.Context, bundlePath string) (DeploymentID, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", errors.Wrap(err, "opening bundle")
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("bundle", filepath.Base(bundlePath))
	if err != nil {
		return "", errors.Wrap(err, "creating bundle part")
	}
	if _, err = io.Copy(part, f); err != nil {
		return "", errors.Wrap(err, "reading bundle")
	}
	if err = mw.WriteField("publishingType", PublishingAutomatic); err != nil {
		return "", errors.Wrap(err, "writing publishingType")
	}
	if err = mw.Close(); err != nil {
		return "", errors.Wrap(err, "finishing multipart body")
	}

	respBytes, err := c.do(ctx, "POST", transport.Upload, body, mw.FormDataContentType(), []int{http.StatusCreated})
	if err != nil {
		return "", err
	}
	id := strings.Trim(strings.TrimSpace(string(respBytes)), `"`)
	if id == "" {
		return "", errors.New("upload response did not contain a deployment ID")
	}
	return DeploymentID(id), nil
}

// Status fetches the current state of a deployment. Only 200 OK is
// accepted.
func (c *Client) Status(ctx context.Context, id DeploymentID) (DeploymentStatus, error) {
	var res DeploymentStatus
	reqBody, err := json.Marshal(map[string]DeploymentID{"deploymentId": id})
	if err != nil {
		return res, errors.Wrap(err, "encoding request body")
	}
	respBytes, err := c.do(ctx, "POST", transport.DeploymentStatus, bytes.NewReader(reqBody), "application/json", []int{http.StatusOK})
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return res, errors.Wrap(err, "decoding response from server")
	}
	if res.State == "" {
		res.State = StateUnknown
	}
	if res.ID == "" {
		res.ID = id
	}
	return res, nil
}

// Drop deletes a deployment on the server.
func (c *Client) Drop(ctx context.Context, id DeploymentID) error {
	_, err := c.do(ctx, "DELETE", transport.DropDeployment, nil, "", []int{http.StatusOK, http.StatusNoContent}, "id", string(id))
	return err
}

// List returns every deployment visible to the credentials in use.
func (c *Client) List(ctx context.Context) ([]DeploymentStatus, error) {
	respBytes, err := c.do(ctx, "GET", transport.ListDeployments, nil, "", []int{http.StatusOK})
	if err != nil {
		if apiErr, ok := errors.Cause(err).(*httperror.APIError); ok && apiErr.IsMissing() {
			return nil, ErrListUnavailable
		}
		return nil, err
	}
	var res []DeploymentStatus
	if len(bytes.TrimSpace(respBytes)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return nil, errors.Wrap(err, "decoding response from server")
	}
	for i := range res {
		if res[i].State == "" {
			res[i].State = StateUnknown
		}
	}
	return res, nil
}

// do sends one request to the named route and returns the response
// body, provided the status code is one of those accepted.
func (c *Client) do(ctx context.Context, method, route string, body io.Reader, contentType string, accept []int, urlParams ...string) ([]byte, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, route, urlParams...)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	c.creds.Set(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	for _, code := range accept {
		if resp.StatusCode == code {
			return respBytes, nil
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, transport.ErrorUnauthorized
	}
	return nil, httperror.New(resp, respBytes)
}
