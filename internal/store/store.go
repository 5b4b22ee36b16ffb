// Package store persists user settings and uploaded context documents.
//
// Small values live in a key/value settings table. Extracted document text
// lives in its own table so large blobs never share a row with API keys.
package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/model"
)

// Setting keys.
const (
	KeyOpenAI               = "openai_api_key"
	KeyClaude               = "claude_api_key"
	KeyGrok                 = "grok_api_key"
	KeyDeepSeek             = "deepseek_api_key"
	KeySelectedModel        = "selected_model"
	KeyDefaultModel         = "default_model"
	KeyCustomContext        = "custom_context"
	KeyCustomContextEnabled = "custom_context_enabled"
)

var providerKeys = map[model.Provider]string{
	model.ProviderOpenAI:   KeyOpenAI,
	model.ProviderClaude:   KeyClaude,
	model.ProviderGrok:     KeyGrok,
	model.ProviderDeepSeek: KeyDeepSeek,
}

// Keys returns every known setting key in display order.
func Keys() []string {
	return []string{
		KeyOpenAI, KeyClaude, KeyGrok, KeyDeepSeek,
		KeySelectedModel, KeyDefaultModel,
		KeyCustomContext, KeyCustomContextEnabled,
	}
}

// IsSecret reports whether a key holds an API key.
func IsSecret(key string) bool {
	return strings.HasSuffix(key, "_api_key")
}

// ErrDocumentNotFound is returned when deleting an unknown document.
var ErrDocumentNotFound = eris.New("store: document not found")

// Store persists settings and context documents. Writes are
// last-writer-wins.
type Store interface {
	// GetSettings returns the saved settings with every document attached.
	GetSettings(ctx context.Context) (model.Settings, error)
	// SaveSettings writes every setting key. Documents are not touched.
	SaveSettings(ctx context.Context, s model.Settings) error
	SetValue(ctx context.Context, key, value string) error
	AddDocument(ctx context.Context, doc model.ContextDocument) (model.ContextDocument, error)
	ListDocuments(ctx context.Context) ([]model.ContextDocument, error)
	DeleteDocument(ctx context.Context, id string) error
	Migrate(ctx context.Context) error
	Close() error
}

// ValidateKey rejects unknown setting keys and malformed values.
func ValidateKey(key, value string) error {
	for _, k := range Keys() {
		if k != key {
			continue
		}
		if key == KeyCustomContextEnabled {
			if _, err := strconv.ParseBool(value); err != nil {
				return eris.Errorf("store: %s must be true or false, got %q", key, value)
			}
		}
		return nil
	}
	return eris.Errorf("store: unknown setting %q", key)
}

// toValues flattens settings into key/value rows.
func toValues(s model.Settings) map[string]string {
	values := map[string]string{
		KeySelectedModel:        s.SelectedModel,
		KeyDefaultModel:         s.DefaultModel,
		KeyCustomContext:        s.CustomContext,
		KeyCustomContextEnabled: strconv.FormatBool(s.CustomContextEnabled),
	}
	for p, key := range providerKeys {
		values[key] = s.APIKey(p)
	}
	return values
}

// fromValues builds settings from key/value rows. A missing selected
// model falls back to the default model.
func fromValues(values map[string]string) model.Settings {
	s := model.Settings{
		APIKeys:       map[model.Provider]string{},
		SelectedModel: values[KeySelectedModel],
		DefaultModel:  values[KeyDefaultModel],
		CustomContext: values[KeyCustomContext],
	}
	s.CustomContextEnabled, _ = strconv.ParseBool(values[KeyCustomContextEnabled])
	for p, key := range providerKeys {
		if v := strings.TrimSpace(values[key]); v != "" {
			s.APIKeys[p] = v
		}
	}
	if s.SelectedModel == "" {
		s.SelectedModel = s.DefaultModel
	}
	return s
}

// prepareDocument fills the id and upload time and validates the rest.
func prepareDocument(doc model.ContextDocument) (model.ContextDocument, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return doc, eris.New("store: document name is required")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.SizeBytes == 0 {
		doc.SizeBytes = int64(len(doc.ExtractedText))
	}
	return doc, nil
}

// Open connects to the configured driver and runs migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "sqlite":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
