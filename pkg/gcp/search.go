package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/cloudsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// SearchAPI is the subset of the Cloud Search indexing API used by
// SchemaUpdater. Responses are returned as received.
type SearchAPI interface {
	GetSchema(ctx context.Context, name string) (json.RawMessage, error)
	UpdateSchema(ctx context.Context, name string, req *UpdateSchemaRequest) (json.RawMessage, error)
}

// UpdateSchemaRequest is the body of an update-schema call. Schema is sent
// as read from disk, so fields unknown to the generated client survive.
type UpdateSchemaRequest struct {
	Schema       json.RawMessage `json:"schema"`
	ValidateOnly bool            `json:"validateOnly,omitempty"`
}

// CloudSearchAPI implements SearchAPI on the authenticated HTTP client. The
// generated service only resolves the endpoint; its typed Schema would drop
// fields it does not know in both directions.
type CloudSearchAPI struct {
	client   *http.Client
	basePath string
}

func NewSearchAPI(ctx context.Context, opts ...option.ClientOption) (*CloudSearchAPI, error) {
	client, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudsearch http client: %w", err)
	}
	service, err := cloudsearch.NewService(ctx, append(opts, option.WithHTTPClient(client))...)
	if err != nil {
		return nil, fmt.Errorf("cloudsearch.NewService: %w", err)
	}
	return &CloudSearchAPI{client: client, basePath: service.BasePath}, nil
}

func (c *CloudSearchAPI) GetSchema(ctx context.Context, name string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, name, nil)
}

func (c *CloudSearchAPI) UpdateSchema(ctx context.Context, name string, body *UpdateSchemaRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, name, payload)
}

// do calls v1/indexing/{+name}/schema, expanding name the way the generated
// client does.
func (c *CloudSearchAPI) do(ctx context.Context, method, name string, payload []byte) (json.RawMessage, error) {
	urls := googleapi.ResolveRelative(c.basePath, "v1/indexing/{+name}/schema")
	urls += "?" + url.Values{"alt": {"json"}, "prettyPrint": {"false"}}.Encode()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, urls, body)
	if err != nil {
		return nil, err
	}
	googleapi.Expand(req.URL, map[string]string{"name": name})
	req.Header.Set("User-Agent", googleapi.UserAgent)
	req.Header.Set("x-goog-api-client", apiClientHeader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}
	return io.ReadAll(res.Body)
}

var apiClientHeader = "gl-go/" + strings.TrimPrefix(runtime.Version(), "go")

func DatasourceName(datasourceID string) string {
	return "datasources/" + datasourceID
}

// ReadSchema loads a schema document. The content must be valid JSON and is
// returned unchanged.
func ReadSchema(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindIO, "read schema", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newError(KindParse, "parse schema "+path, err)
	}
	return json.RawMessage(bytes.TrimSpace(data)), nil
}

type SchemaUpdater struct {
	api          SearchAPI
	log          logrus.FieldLogger
	ValidateOnly bool
}

func NewSchemaUpdater(api SearchAPI, log logrus.FieldLogger) *SchemaUpdater {
	return &SchemaUpdater{api: api, log: log}
}

// UpdateResult holds the update-schema response and the schema read back
// right after it.
type UpdateResult struct {
	Operation json.RawMessage
	Schema    json.RawMessage
}

// Update replaces the schema of a data source with the document at
// schemaPath, then fetches the schema again.
func (u *SchemaUpdater) Update(ctx context.Context, datasourceID, schemaPath string) (*UpdateResult, error) {
	name := DatasourceName(datasourceID)
	log := u.log.WithField("datasource", name)
	log.Info("Updating schema - START")

	schema, err := ReadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	op, err := u.api.UpdateSchema(ctx, name, &UpdateSchemaRequest{Schema: schema, ValidateOnly: u.ValidateOnly})
	if err != nil {
		return nil, newError(KindAPI, "update schema of "+name, err)
	}
	log.Infof("Update: %s", op)

	current, err := u.Get(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	log.Info("Updating schema - END")
	return &UpdateResult{Operation: op, Schema: current}, nil
}

// Get fetches and logs the current schema of a data source unchanged.
func (u *SchemaUpdater) Get(ctx context.Context, datasourceID string) (json.RawMessage, error) {
	name := DatasourceName(datasourceID)
	schema, err := u.api.GetSchema(ctx, name)
	if err != nil {
		return nil, newError(KindAPI, "get schema of "+name, err)
	}
	u.log.WithField("datasource", name).Infof("Get: %s", schema)
	return schema, nil
}
