package spec

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "path/filepath"
    "regexp"
    "strings"
    "time"

    openapi2 "github.com/getkin/kin-openapi/openapi2"
    "github.com/getkin/kin-openapi/openapi2conv"
    "github.com/getkin/kin-openapi/openapi3"
    "github.com/go-logr/logr"
    "github.com/avast/retry-go"
    "github.com/go-openapi/jsonpointer"
    kyaml "github.com/invopop/yaml"
    "gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    NetworkError    ErrorCode = "NetworkError"
    ParseError      ErrorCode = "ParseError"
    ValidationError ErrorCode = "ValidationError"
    ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
    Code        ErrorCode
    Message     string
    Location    string // file path or URL
    JSONPointer string // e.g. "#/paths/~1pets/get"
    Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Document is a parsed OpenAPI 3 document together with the source order of
// its mappings.
type Document struct {
    Spec *openapi3.T
    // Order is nil when the raw bytes could not be indexed.
    Order *Order
    // Location is the file path or URL the document came from.
    Location string
    // SourceVersion is 2 for Swagger 2.0 input converted to OpenAPI 3, else 3.
    SourceVersion int
}

// Settings configures loader behavior.
type Settings struct {
    // HTTPTimeout bounds each HTTP request.
    HTTPTimeout time.Duration
    // MaxRetries for transient HTTP failures (>=500, 429, or network errors).
    MaxRetries int
    // BackoffBase is the base delay for exponential backoff.
    BackoffBase time.Duration
    // AllowFileRefs controls whether file:// refs are allowed for external references.
    // Automatically allowed when the root input is a local file.
    AllowFileRefs bool
    // Strict turns validation failures into errors. Otherwise they are logged
    // and conversion reports what it cannot handle.
    Strict bool
    Logger logr.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        HTTPTimeout: 10 * time.Second,
        MaxRetries:  3,
        BackoffBase: 200 * time.Millisecond,
        Logger:      logr.Discard(),
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithStrict(strict bool) Option          { return func(s *Settings) { s.Strict = strict } }
func WithLogger(l logr.Logger) Option        { return func(s *Settings) { s.Logger = l } }

// Load reads and parses an OpenAPI v3 document. Swagger v2.0 input is
// converted to v3 via kin-openapi openapi2conv.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
    if strings.TrimSpace(input) == "" {
        return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
    }

    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }

    u, uerr := url.Parse(input)
    isURL := uerr == nil && u.Scheme != "" && u.Host != ""

    if isURL {
        scheme := strings.ToLower(u.Scheme)
        if scheme == "file" {
            return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
        }
        if scheme != "http" && scheme != "https" {
            return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
        }
        raw, err := fetchWithRetry(ctx, input, settings)
        if err != nil {
            return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
        }
        return load(ctx, raw, input, u, settings, false)
    }

    // Treat as local filesystem path.
    abs, err := filepath.Abs(input)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
    }
    raw, err := os.ReadFile(abs)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
    }
    return load(ctx, raw, abs, &url.URL{Path: filepath.ToSlash(abs)}, settings, true)
}

// LoadData parses an in-memory document. location only labels errors;
// relative external refs are not resolvable.
func LoadData(ctx context.Context, data []byte, location string, opts ...Option) (*Document, error) {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }
    return load(ctx, data, location, nil, settings, false)
}

func load(ctx context.Context, raw []byte, location string, base *url.URL, settings Settings, rootIsFile bool) (*Document, error) {
    log := settings.Logger.WithValues("location", location)

    version, err := detectSpecVersion(raw)
    if err != nil {
        return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
    }

    doc := &Document{Location: location, SourceVersion: version}
    switch version {
    case 3:
        loader := newLoader(settings, rootIsFile)
        if base != nil {
            doc.Spec, err = loader.LoadFromDataWithPath(raw, base)
        } else {
            doc.Spec, err = loader.LoadFromData(raw)
        }
        if err != nil {
            if settings.Strict {
                return nil, mapValidateOrParseErr(err, location)
            }
            // A reference the loader cannot follow fails the whole load. Parse
            // without resolving and resolve what can be resolved; whatever is
            // left is reported by the conversion.
            unresolved, uerr := unmarshalV3(raw)
            if uerr != nil {
                return nil, mapValidateOrParseErr(err, location)
            }
            log.Info("document has unresolvable references, continuing", "error", err.Error())
            if rerr := newLoader(settings, rootIsFile).ResolveRefsIn(unresolved, base); rerr != nil {
                log.V(1).Info("reference resolution stopped early", "error", rerr.Error())
            }
            doc.Spec = unresolved
        }
    case 2:
        if fixed, changed, rerr := repairV2(raw); rerr == nil && changed {
            log.V(1).Info("rewrote Swagger 2.0 body parameters openapi2conv cannot convert")
            raw = fixed
        }
        doc.Spec, err = convertV2ToV3(raw)
        if err != nil {
            return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
        }
        loader := newLoader(settings, rootIsFile)
        if err := loader.ResolveRefsIn(doc.Spec, base); err != nil {
            log.Info("failed to resolve refs after conversion", "error", err.Error())
        }
    default:
        return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: location}
    }

    if err := doc.Spec.Validate(ctx); err != nil {
        if settings.Strict && !canProceedDespiteValidation(err) {
            return nil, mapValidateOrParseErr(err, location)
        }
        log.V(1).Info("document does not validate, continuing", "error", err.Error())
    }

    order, err := BuildOrder(raw)
    if err != nil {
        log.Info("source order unavailable, falling back to sorted keys", "error", err.Error())
        return doc, nil
    }
    if version == 2 {
        order.rebase("/definitions", "/components/schemas")
    }
    doc.Order = order
    return doc, nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
    loader := openapi3.NewLoader()
    loader.IsExternalRefsAllowed = true
    client := &http.Client{Timeout: settings.HTTPTimeout}
    // Allow file refs only when configured or when loading from a local file root.
    allowFile := settings.AllowFileRefs || rootIsFile
    loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
        switch strings.ToLower(uri.Scheme) {
        case "", "file":
            if !allowFile {
                return nil, fmt.Errorf("blocked file ref: %s", uri.String())
            }
            path := uri.Path
            if path == "" {
                path = uri.Opaque
            }
            return os.ReadFile(path)
        case "http", "https":
            req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
            if err != nil {
                return nil, err
            }
            resp, err := client.Do(req)
            if err != nil {
                return nil, err
            }
            defer resp.Body.Close()
            if resp.StatusCode >= 400 {
                return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
            }
            return io.ReadAll(resp.Body)
        default:
            return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
        }
    }
    return loader
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
    var root map[string]any
    if err := yaml.Unmarshal(data, &root); err != nil {
        return 0, fmt.Errorf("parse spec: %w", err)
    }
    if v, ok := root["openapi"]; ok {
        if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
            return 3, nil
        }
    }
    if v, ok := root["swagger"]; ok {
        if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
            return 2, nil
        }
    }
    return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// unmarshalV3 decodes an OpenAPI 3 document without resolving references.
func unmarshalV3(data []byte) (*openapi3.T, error) {
    var doc openapi3.T
    if err := kyaml.Unmarshal(data, &doc); err != nil {
        return nil, err
    }
    return &doc, nil
}

// convertV2ToV3 goes through JSON so openapi2's json tags ($ref,
// operationId) apply to YAML input too.
func convertV2ToV3(data []byte) (*openapi3.T, error) {
    js, err := kyaml.YAMLToJSON(data)
    if err != nil {
        return nil, err
    }
    var v2 openapi2.T
    if err := json.Unmarshal(js, &v2); err != nil {
        return nil, err
    }
    return openapi2conv.ToV3(&v2)
}

// transientError marks a fetch failure worth another attempt.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
    var te transientError
    return errors.As(err, &te)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
    client := &http.Client{Timeout: settings.HTTPTimeout}
    backoff := settings.BackoffBase
    if backoff <= 0 {
        backoff = 200 * time.Millisecond
    }
    attempts := settings.MaxRetries
    if attempts <= 0 {
        attempts = 1
    }

    var body []byte
    err := retry.Do(
        func() error {
            b, transient, err := fetchOnce(ctx, client, rawURL)
            if err != nil {
                if transient {
                    return transientError{err: err}
                }
                return err
            }
            body = b
            return nil
        },
        retry.Context(ctx),
        retry.Attempts(uint(attempts)),
        retry.Delay(backoff),
        retry.DelayType(retry.BackOffDelay),
        retry.LastErrorOnly(true),
        retry.RetryIf(isTransient),
        retry.OnRetry(func(n uint, err error) {
            settings.Logger.V(1).Info("fetch failed, retrying", "url", rawURL, "attempt", n+1, "error", err.Error())
        }),
    )
    if err != nil {
        return nil, err
    }
    return body, nil
}

// fetchOnce performs one GET. retry reports whether the failure is transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
    if err != nil {
        return nil, false, err
    }
    resp, err := client.Do(req)
    if err != nil {
        return nil, true, err
    }
    defer resp.Body.Close()
    if resp.StatusCode < 300 {
        body, err = io.ReadAll(resp.Body)
        return body, false, err
    }
    if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
        return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
    }
    msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
    return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func mapValidateOrParseErr(err error, location string) error {
    pointer := extractJSONPointer(err)
    code := ValidationError
    lower := strings.ToLower(err.Error())
    if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "unmarshal") {
        code = ParseError
    }
    return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
    if err == nil {
        return ""
    }
    if me, ok := err.(openapi3.MultiError); ok {
        if len(me) > 0 {
            return extractJSONPointer(me[0])
        }
    }
    var se *openapi3.SchemaError
    if errors.As(err, &se) {
        if parts := se.JSONPointer(); len(parts) > 0 {
            escaped := make([]string, len(parts))
            for i, p := range parts {
                escaped[i] = jsonpointer.Escape(p)
            }
            return "#/" + strings.Join(escaped, "/")
        }
        if se.SchemaField != "" {
            return se.SchemaField
        }
    }
    if m := jsonPtrRe.FindString(err.Error()); m != "" {
        return m
    }
    return ""
}

// canProceedDespiteValidation returns true for validation errors a strict
// load still tolerates. Unresolved $ref entries only reach validation when
// the document loaded, and the conversion reports them.
func canProceedDespiteValidation(err error) bool {
    if err == nil {
        return true
    }
    s := strings.ToLower(err.Error())
    return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
