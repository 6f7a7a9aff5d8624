package aiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
)

// maxImageEdge bounds the longest edge of images sent to the provider. The
// stored original is untouched; this only shrinks the request payload.
const maxImageEdge = 1568

const defaultMaxTokens = 4096

// ImageInput is one photo attached to an appraisal request, in user selection
// order.
type ImageInput struct {
	Data     []byte
	MimeType string
	FileName string
}

// AppraiseInput is the full input for one analysis call.
type AppraiseInput struct {
	Category    string
	Description string
	Images      []ImageInput
}

// Provider is the boundary the appraisal service talks to. The concrete
// implementation is swappable; tests substitute a fake.
type Provider interface {
	Appraise(ctx context.Context, in AppraiseInput) (*Result, error)
}

// Client sends appraisal requests to the Anthropic Messages API and parses
// the structured result out of the free-form reply.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// NewClient creates an appraisal client. The API key is required; a missing
// key is a configuration error the caller should treat as fatal at startup.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("aiclient: API key is required")
	}
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: anthropic.ModelClaude3_5SonnetLatest,
	}, nil
}

// ModelVersion returns the model identifier used for analyses. It is recorded
// as the performing agent in valuation history entries.
func (c *Client) ModelVersion() string {
	return string(c.model)
}

// Appraise validates the input, sends it to the model and decodes the reply.
// Input problems return a *ValidationError before any network traffic,
// provider failures a *TransportError, undecodable replies a *ParseError.
func (c *Client) Appraise(ctx context.Context, in AppraiseInput) (*Result, error) {
	if in.Description == "" {
		return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if in.Category == "" {
		return nil, &ValidationError{Field: "category", Reason: "must not be empty"}
	}

	content := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(buildAppraisalPrompt(in.Description, in.Category)),
	}
	for _, img := range in.Images {
		data, mediaType := prepareImage(img)
		content = append(content, anthropic.NewImageBlockBase64(
			mediaType,
			base64.StdEncoding.EncodeToString(data),
		))
	}

	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(content...),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return nil, &TransportError{Op: "messages", StatusCode: apierr.StatusCode, Err: err}
		}
		return nil, &TransportError{Op: "messages", Err: err}
	}

	var reply bytes.Buffer
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.WriteString(b.Text)
			reply.WriteString("\n")
		}
	}

	result, err := ParseResult(reply.String())
	if err != nil {
		return nil, err
	}
	result.ModelVersion = string(c.model)

	return result, nil
}

// prepareImage downscales oversized photos and determines the media type the
// provider accepts. JPEG is assumed unless the bytes are evidently PNG.
func prepareImage(img ImageInput) ([]byte, string) {
	data := img.Data

	if decoded, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		bounds := decoded.Bounds()
		if bounds.Dx() > maxImageEdge || bounds.Dy() > maxImageEdge {
			resized := imaging.Fit(decoded, maxImageEdge, maxImageEdge, imaging.Lanczos)
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, resized, imaging.JPEG); err == nil {
				return buf.Bytes(), "image/jpeg"
			}
			log.Warnf("[AIClient] re-encode of %s failed, sending original", img.FileName)
		}
	}

	return data, detectMediaType(data, img.MimeType)
}

func detectMediaType(data []byte, declared string) string {
	sniffed := declared
	if len(data) > 0 {
		sniffed = http.DetectContentType(data)
	}
	if sniffed == "image/jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}
