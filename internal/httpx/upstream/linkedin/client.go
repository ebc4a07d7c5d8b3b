package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.linkedin.com"
	defaultTimeout = 30 * time.Second

	restliProtocolVersion = "2.0.0"
)

// Client is a LinkedIn API client for content publishing
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a new LinkedIn API client
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the LinkedIn API
type APIError struct {
	Message       string `json:"message"`
	ServiceCode   int    `json:"serviceErrorCode"`
	Status        int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin API error: %s (status: %d, service code: %d)", e.Message, e.Status, e.ServiceCode)
}

// RegisterUploadInput represents input for registering an image upload
type RegisterUploadInput struct {
	AccessToken string
	OwnerURN    string // urn:li:person:{id}
}

// RegisterUploadOutput represents output from registering an upload
type RegisterUploadOutput struct {
	AssetURN  string // urn:li:digitalmediaAsset:{id}
	UploadURL string
}

type registerUploadRequest struct {
	RegisterUploadRequest struct {
		Recipes    []string `json:"recipes"`
		Owner      string   `json:"owner"`
		Relationships []struct {
			RelationshipType string `json:"relationshipType"`
			Identifier       string `json:"identifier"`
		} `json:"serviceRelationships"`
	} `json:"registerUploadRequest"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

// RegisterUpload registers an image upload and returns the asset URN
// plus the URL to PUT the bytes to.
// Step 1 of publishing a post with an image.
func (c *Client) RegisterUpload(ctx context.Context, in RegisterUploadInput) (*RegisterUploadOutput, error) {
	endpoint := fmt.Sprintf("%s/v2/assets?action=registerUpload", c.baseURL)

	var reqBody registerUploadRequest
	reqBody.RegisterUploadRequest.Recipes = []string{"urn:li:digitalmediaRecipe:feedshare-image"}
	reqBody.RegisterUploadRequest.Owner = in.OwnerURN
	reqBody.RegisterUploadRequest.Relationships = []struct {
		RelationshipType string `json:"relationshipType"`
		Identifier       string `json:"identifier"`
	}{
		{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, endpoint, in.AccessToken, reqBody)
	if err != nil {
		return nil, err
	}

	var resp registerUploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	out := &RegisterUploadOutput{AssetURN: resp.Value.Asset}
	for _, m := range resp.Value.UploadMechanism {
		if m.UploadURL != "" {
			out.UploadURL = m.UploadURL
			break
		}
	}
	if out.UploadURL == "" {
		return nil, fmt.Errorf("register upload: no upload URL in response")
	}

	return out, nil
}

// UploadAsset PUTs the raw image bytes to the registered upload URL.
// Step 2 of publishing a post with an image.
func (c *Client) UploadAsset(ctx context.Context, uploadURL, accessToken string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("asset upload failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// CreatePostInput represents input for creating a UGC post
type CreatePostInput struct {
	AccessToken string
	AuthorURN   string
	Text        string
	AssetURN    string // optional image asset
}

// CreatePostOutput represents output from creating a UGC post
type CreatePostOutput struct {
	ID string `json:"id"` // urn:li:share:{id}
}

type ugcPostRequest struct {
	Author         string `json:"author"`
	LifecycleState string `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility     map[string]string           `json:"visibility"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

// CreatePost creates a UGC post, optionally referencing an uploaded
// image asset. Final step of the publishing process.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*CreatePostOutput, error) {
	endpoint := fmt.Sprintf("%s/v2/ugcPosts", c.baseURL)

	content := ugcShareContent{
		ShareCommentary:    ugcText{Text: in.Text},
		ShareMediaCategory: "NONE",
	}
	if in.AssetURN != "" {
		content.ShareMediaCategory = "IMAGE"
		content.Media = []ugcMedia{{Status: "READY", Media: in.AssetURN}}
	}

	reqBody := ugcPostRequest{
		Author:         in.AuthorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{
			"com.linkedin.ugc.ShareContent": content,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, endpoint, in.AccessToken, reqBody)
	if err != nil {
		return nil, err
	}

	var out CreatePostOutput
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// newJSONRequest builds an authorized request with a JSON body
func (c *Client) newJSONRequest(ctx context.Context, method, endpoint, accessToken string, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)

	return req, nil
}

// do executes an HTTP request and decodes the response
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
