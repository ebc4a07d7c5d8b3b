package linkedin

import (
	"context"
	"fmt"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// MediaStore resolves a post's image attachment to raw bytes.
// Defined here (consumer) not in the storage package (provider).
type MediaStore interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Publisher handles the complete publishing workflow for LinkedIn posts
type Publisher struct {
	client *Client
	media  MediaStore
}

// NewPublisher creates a new LinkedIn publisher
func NewPublisher(client *Client, media MediaStore) *Publisher {
	return &Publisher{client: client, media: media}
}

// PublishInput represents input for publishing a post
type PublishInput struct {
	AuthorURN   string
	AccessToken string
	Post        *entity.Post
}

// PublishOutput represents output from publishing a post
type PublishOutput struct {
	PlatformPostID string
}

// Publish publishes a post to LinkedIn. Text-only posts go straight to
// post creation; an image attachment runs the 3-step asset workflow:
// register upload -> upload bytes -> create post referencing the asset.
func (p *Publisher) Publish(ctx context.Context, in PublishInput) (*PublishOutput, error) {
	post := in.Post

	var assetURN string
	if post.MediaKey != "" {
		urn, err := p.uploadImage(ctx, in, post.MediaKey)
		if err != nil {
			return nil, fmt.Errorf("uploading image: %w", err)
		}
		assetURN = urn
	}

	out, err := p.client.CreatePost(ctx, CreatePostInput{
		AccessToken: in.AccessToken,
		AuthorURN:   in.AuthorURN,
		Text:        post.Content,
		AssetURN:    assetURN,
	})
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return &PublishOutput{PlatformPostID: out.ID}, nil
}

// uploadImage moves the attachment from object storage to a LinkedIn
// asset and returns its URN
func (p *Publisher) uploadImage(ctx context.Context, in PublishInput, mediaKey string) (string, error) {
	if p.media == nil {
		return "", fmt.Errorf("no media store configured")
	}

	data, contentType, err := p.media.Download(ctx, mediaKey)
	if err != nil {
		return "", fmt.Errorf("downloading media %s: %w", mediaKey, err)
	}

	reg, err := p.client.RegisterUpload(ctx, RegisterUploadInput{
		AccessToken: in.AccessToken,
		OwnerURN:    in.AuthorURN,
	})
	if err != nil {
		return "", fmt.Errorf("registering upload: %w", err)
	}

	if err := p.client.UploadAsset(ctx, reg.UploadURL, in.AccessToken, data, contentType); err != nil {
		return "", err
	}

	return reg.AssetURN, nil
}
