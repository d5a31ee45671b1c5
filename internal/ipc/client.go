package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Import queues a track import.
func (c *Client) Import(path string, force bool) (*JobResponse, error) {
	return call[JobResponse](c, "Import", ImportRequest{Path: path, Force: force})
}

// ImageImport queues frame extraction for a track.
func (c *Client) ImageImport(trackID int64) (*JobResponse, error) {
	return call[JobResponse](c, "ImageImport", ImageImportRequest{TrackID: trackID})
}

// MissingImages queues frame extraction for every track lacking images.
func (c *Client) MissingImages() (*MissingImagesResponse, error) {
	return call[MissingImagesResponse](c, "MissingImages", MissingImagesRequest{})
}

// JobsList lists jobs.
func (c *Client) JobsList(req JobsListRequest) (*JobsListResponse, error) {
	return call[JobsListResponse](c, "JobsList", req)
}

// JobShow fetches a single job.
func (c *Client) JobShow(id int64) (*JobShowResponse, error) {
	return call[JobShowResponse](c, "JobShow", JobShowRequest{ID: id})
}

// JobRetry requeues failed jobs.
func (c *Client) JobRetry(ids []int64) (*CountResponse, error) {
	return call[CountResponse](c, "JobRetry", JobRetryRequest{IDs: ids})
}

// JobClear removes finished jobs within scope.
func (c *Client) JobClear(scope string) (*CountResponse, error) {
	return call[CountResponse](c, "JobClear", JobClearRequest{Scope: scope})
}

// JobRemove deletes specific jobs.
func (c *Client) JobRemove(ids []int64) (*CountResponse, error) {
	return call[CountResponse](c, "JobRemove", JobRemoveRequest{IDs: ids})
}

// TracksList lists catalogued tracks.
func (c *Client) TracksList(req TracksListRequest) (*TracksListResponse, error) {
	return call[TracksListResponse](c, "TracksList", req)
}

// TrackShow fetches a track with its images.
func (c *Client) TrackShow(id int64) (*TrackShowResponse, error) {
	return call[TrackShowResponse](c, "TrackShow", TrackShowRequest{ID: id})
}

// DirsList lists watched directories.
func (c *Client) DirsList() (*DirsListResponse, error) {
	return call[DirsListResponse](c, "DirsList", DirsListRequest{})
}

// DirAdd registers a watched directory.
func (c *Client) DirAdd(path string) (*DirResponse, error) {
	return call[DirResponse](c, "DirAdd", DirAddRequest{Path: path})
}

// DirRemove unregisters a watched directory.
func (c *Client) DirRemove(id int64) (*DirResponse, error) {
	return call[DirResponse](c, "DirRemove", DirRemoveRequest{ID: id})
}

// TargetsList lists apprise targets.
func (c *Client) TargetsList() (*TargetsListResponse, error) {
	return call[TargetsListResponse](c, "TargetsList", TargetsListRequest{})
}

// TargetAdd registers an apprise URL.
func (c *Client) TargetAdd(url string) (*TargetAddResponse, error) {
	return call[TargetAddResponse](c, "TargetAdd", TargetAddRequest{URL: url})
}

// TargetRemove deletes an apprise target.
func (c *Client) TargetRemove(id int64) (*RemoveResponse, error) {
	return call[RemoveResponse](c, "TargetRemove", TargetRemoveRequest{ID: id})
}

// TestNotification sends a notification through every configured sink.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// Rescan rescans every import directory.
func (c *Client) Rescan() (*RescanResponse, error) {
	return call[RescanResponse](c, "Rescan", RescanRequest{})
}
