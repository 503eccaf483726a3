// Package framer turns raw HTTP request bodies into operation requests.
//
// The client speaks three dialects on the same endpoints: plain SOAP
// envelopes, gzip-compressed envelopes, and SubmitReport bodies where a
// short XML preamble is followed by an application/bin marker and raw
// report bytes. Only the first two are valid XML.
package framer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/soap"
)

// Known operation names.
const (
	OpLoginRemoteAuth    = "LoginRemoteAuth"
	OpCreateSession      = "CreateSession"
	OpSetReportIntention = "SetReportIntention"
	OpSubmitReport       = "SubmitReport"
)

// DefaultMaxBodyBytes bounds bodies before and after decompression.
const DefaultMaxBodyBytes = 1 << 20

// ErrFraming is returned when a body cannot be unwrapped.
var ErrFraming = errors.New("request framing failed")

// BinaryMarker separates the XML preamble from the report bytes.
var BinaryMarker = []byte("application/bin\x00")

var gzipMagic = []byte{0x1f, 0x8b}

// knownOperations is matched in order against the SOAPAction header.
var knownOperations = []string{
	OpLoginRemoteAuth,
	OpCreateSession,
	OpSetReportIntention,
	OpSubmitReport,
}

var (
	csidPattern      = tagPattern("csid")
	ccidPattern      = tagPattern("ccid")
	profileIDPattern = tagPattern("profileid")
)

// tagPattern matches <name>text</name> with an optional namespace prefix on
// either tag.
func tagPattern(name string) *regexp.Regexp {
	prefix := `(?:[A-Za-z_][\w.\-]*:)?`
	return regexp.MustCompile(`<` + prefix + name + `(?:\s[^>]*)?>([^<]*)</` + prefix + name + `\s*>`)
}

// Request is a framed operation request.
type Request struct {
	// SOAPAction is the raw header value.
	SOAPAction string
	// Action is the known operation named by the header, or "".
	Action string
	// Operation is the parsed operation element. It is nil on the binary
	// SubmitReport path.
	Operation *soap.Element

	CSID      string
	CCID      string
	ProfileID int
	Report    []byte

	Compressed bool
	Binary     bool
}

// OperationName returns the parsed operation name, falling back to the
// header action when nothing was parsed.
func (r *Request) OperationName() string {
	if r.Operation != nil {
		return soap.OperationName(r.Operation)
	}
	return r.Action
}

// Framer unwraps request bodies.
type Framer struct {
	maxBodyBytes int64
	logger       zerolog.Logger
}

// New creates a Framer. A non-positive limit selects DefaultMaxBodyBytes.
func New(maxBodyBytes int64) *Framer {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Framer{
		maxBodyBytes: maxBodyBytes,
		logger:       log.With().Str("component", "framer").Logger(),
	}
}

// MaxBodyBytes returns the configured body limit.
func (f *Framer) MaxBodyBytes() int64 {
	return f.maxBodyBytes
}

// ResolveAction returns the first known operation whose name appears in the
// SOAPAction header, ignoring case and surrounding quotes.
func ResolveAction(header string) string {
	for _, op := range knownOperations {
		if MatchAction(header, op) {
			return op
		}
	}
	return ""
}

// MatchAction reports whether header names operation.
func MatchAction(header, operation string) bool {
	h := strings.ToLower(strings.Trim(header, "\"' "))
	return h != "" && strings.Contains(h, strings.ToLower(operation))
}

// Frame decompresses body if needed and splits it into an operation request.
func (f *Framer) Frame(soapAction string, body []byte) (*Request, error) {
	req := &Request{
		SOAPAction: soapAction,
		Action:     ResolveAction(soapAction),
	}

	if IsGzip(body) {
		raw, err := f.decompress(body)
		if err != nil {
			return nil, err
		}
		req.Compressed = true
		body = raw
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds limit of %d", ErrFraming, len(body), f.maxBodyBytes)
	}

	if req.Action == OpSubmitReport || (req.Action == "" && bytes.Contains(body, BinaryMarker)) {
		f.frameReport(req, body)
		return req, nil
	}

	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", soap.ErrMalformedXML)
	}
	op, err := soap.ExtractOperation(string(body))
	if err != nil {
		return nil, err
	}
	req.Operation = op
	req.CSID = soap.ElementText(op, "csid")
	req.CCID = soap.ElementText(op, "ccid")
	req.ProfileID = soap.ProfileID(op)
	if soap.OperationName(op) == OpSubmitReport {
		req.Action = OpSubmitReport
		f.decodeReport(req, op)
	}
	return req, nil
}

// frameReport handles SubmitReport bodies without requiring them to be XML.
func (f *Framer) frameReport(req *Request, body []byte) {
	req.Action = OpSubmitReport

	preamble := body
	if idx := bytes.Index(body, BinaryMarker); idx >= 0 {
		preamble = body[:idx]
		payload := body[idx+len(BinaryMarker):]
		req.Report = append([]byte(nil), payload...)
		req.Binary = true
	}

	req.CSID = scanTag(csidPattern, preamble)
	req.CCID = scanTag(ccidPattern, preamble)
	req.ProfileID = atoi(scanTag(profileIDPattern, preamble))

	if req.Binary {
		return
	}

	// Older clients post the report base64 encoded inside a regular envelope.
	if !utf8.Valid(body) {
		return
	}
	op, err := soap.ExtractOperation(string(body))
	if err != nil {
		f.logger.Debug().Err(err).Msg("submit report body is neither binary nor an envelope")
		return
	}
	req.Operation = op
	if req.ProfileID == 0 {
		req.ProfileID = soap.ProfileID(op)
	}
	f.decodeReport(req, op)
}

// decodeReport reads the base64 report element of a SubmitReport envelope.
func (f *Framer) decodeReport(req *Request, op *soap.Element) {
	encoded := soap.ElementText(op, "report")
	if encoded == "" {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		f.logger.Warn().Err(err).Str("csid", req.CSID).Msg("failed to decode base64 report")
		return
	}
	req.Report = decoded
}

func (f *Framer) decompress(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrFraming, err)
	}
	if int64(len(out)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: decompressed body exceeds limit of %d bytes", ErrFraming, f.maxBodyBytes)
	}
	return out, nil
}

// IsGzip reports whether body starts with the gzip magic bytes.
func IsGzip(body []byte) bool {
	return bytes.HasPrefix(body, gzipMagic)
}

func scanTag(pattern *regexp.Regexp, data []byte) string {
	m := pattern.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
