package http

// Central publisher API routes.
const (
	Upload           = "Upload"
	DeploymentStatus = "DeploymentStatus"
	DropDeployment   = "DropDeployment"
	ListDeployments  = "ListDeployments"
)

// Search engine routes. Only the handful of endpoints needed to
// snapshot and restore indices are named here.
const (
	ClusterHealth = "ClusterHealth"
	CatIndices    = "CatIndices"
	GetIndex      = "GetIndex"
	CreateIndex   = "CreateIndex"
	DeleteIndex   = "DeleteIndex"
	SearchScroll  = "SearchScroll"
	ScrollNext    = "ScrollNext"
	ClearScroll   = "ClearScroll"
	Bulk          = "Bulk"
)
