package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

const (
	defaultGrantTTL      = 10 * time.Minute
	maxGrantFilenameSize = 200
)

type GrantOptions struct {
	PublicHost          string
	PublicBaseURL       string
	TTL                 time.Duration
	MaxSizeBytes        int64
	AllowedContentTypes []string
}

type IssueUploadGrantUseCase struct {
	objects ports.ObjectStore
	locator *domain.Locator
	opts    GrantOptions
	allowed map[string]struct{}
}

func NewIssueUploadGrantUseCase(objects ports.ObjectStore, locator *domain.Locator, opts GrantOptions) *IssueUploadGrantUseCase {
	if opts.TTL <= 0 {
		opts.TTL = defaultGrantTTL
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = domain.DefaultMaxUploadBytes
	}
	if len(opts.AllowedContentTypes) == 0 {
		opts.AllowedContentTypes = domain.DefaultAllowedContentTypes
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	allowed := make(map[string]struct{}, len(opts.AllowedContentTypes))
	for _, ct := range opts.AllowedContentTypes {
		allowed[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
	}
	return &IssueUploadGrantUseCase{
		objects: objects,
		locator: locator,
		opts:    opts,
		allowed: allowed,
	}
}

func (uc *IssueUploadGrantUseCase) IssueGrant(ctx context.Context, principal string, req domain.GrantRequest) (*domain.UploadGrant, error) {
	const op = "issue upload grant"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}

	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	verr := domain.NewValidationError(op)
	if strings.TrimSpace(req.Filename) == "" {
		verr.Add("filename", "is required")
	} else if len(req.Filename) > maxGrantFilenameSize {
		verr.Add("filename", fmt.Sprintf("must be at most %d characters", maxGrantFilenameSize))
	}
	if _, ok := uc.allowed[contentType]; !ok {
		verr.Add("contentType", "unsupported image type")
	}
	if req.SizeBytes < 0 || req.SizeBytes > uc.opts.MaxSizeBytes {
		verr.Add("sizeBytes", fmt.Sprintf("must be between 1 and %d", uc.opts.MaxSizeBytes))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "upload.grant")
	key := fmt.Sprintf("uploads/%s-%s", uuid.NewString(), sanitizeFilename(req.Filename))
	grant, err := uc.objects.IssueUploadGrant(ctx, domain.ObjectGrant{
		Key:          key,
		ContentType:  contentType,
		MaxSizeBytes: uc.opts.MaxSizeBytes,
		Expiry:       uc.opts.TTL,
	})
	if err != nil {
		err = domain.WrapError(domain.ErrUpstream, op, err)
		endSpan(span, err)
		return nil, err
	}
	if grant == nil {
		err = domain.WrapError(domain.ErrUpstream, op, errors.New("object store returned no grant"))
		endSpan(span, err)
		return nil, err
	}

	grant.Key = key
	grant.ImageURL = uc.locator.PublicURL(uc.opts.PublicHost, key)
	grant.MaxSizeBytes = uc.opts.MaxSizeBytes
	if uc.opts.PublicBaseURL != "" {
		grant.ConfirmURL = uc.opts.PublicBaseURL + "/v1/uploads"
	}
	endSpan(span, nil)
	return grant, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" {
		return "image"
	}
	return base
}
