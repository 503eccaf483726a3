package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/matchgate/internal/framer"
	"github.com/energizer-project/matchgate/internal/soap"
	"github.com/energizer-project/matchgate/internal/util"
)

// operationFunc handles one framed SOAP operation and returns the response
// model to wrap in an envelope.
type operationFunc func(c *gin.Context, req *framer.Request) (any, error)

type operation struct {
	name   string
	handle operationFunc
}

// soapService is an ordered operation table for one endpoint.
type soapService struct {
	name       string
	operations []operation
	// fallback answers operations the table does not know.
	fallback func() any
}

// resolve picks the operation for req. The SOAPAction header is tried
// first, in table order; the parsed operation name second.
func (svc *soapService) resolve(req *framer.Request) *operation {
	for i := range svc.operations {
		if framer.MatchAction(req.SOAPAction, svc.operations[i].name) {
			return &svc.operations[i]
		}
	}
	name := req.OperationName()
	for i := range svc.operations {
		if svc.operations[i].name == name {
			return &svc.operations[i]
		}
	}
	return nil
}

func (s *Server) dispatch(svc *soapService) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := s.logger.With().Str("service", svc.name).Logger()

		body, err := s.readBody(c)
		if err != nil {
			s.writeFault(c, svc.name, err)
			return
		}

		if s.cfg.GetService().DebugLogRequestBody {
			logger.Debug().
				Str("soap_action", c.GetHeader("SOAPAction")).
				Str("body", util.Preview(body)).
				Msg("request body")
		}

		req, err := s.framer.Frame(c.GetHeader("SOAPAction"), body)
		if err != nil {
			s.writeFault(c, svc.name, err)
			return
		}

		var model any
		if op := svc.resolve(req); op != nil {
			logger.Debug().Str("operation", op.name).Bool("binary", req.Binary).Msg("dispatching operation")
			model, err = op.handle(c, req)
			if err != nil {
				s.writeFault(c, svc.name, err)
				return
			}
		} else {
			logger.Info().
				Str("soap_action", req.SOAPAction).
				Str("operation", req.OperationName()).
				Msg("unknown operation, answering with generic success")
			model = svc.fallback()
		}

		out, err := soap.WrapResponse(model)
		if err != nil {
			s.writeFault(c, svc.name, err)
			return
		}
		c.Data(http.StatusOK, soap.ContentType, []byte(out))
	}
}

// readBody reads at most the framer's limit. Larger bodies fail.
func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	limit := s.framer.MaxBodyBytes()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", framer.ErrFraming, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds limit of %d bytes", framer.ErrFraming, limit)
	}
	return body, nil
}

func (s *Server) writeFault(c *gin.Context, service string, err error) {
	event := s.logger.Error()
	if errors.Is(err, soap.ErrMalformedXML) || errors.Is(err, framer.ErrFraming) {
		event = s.logger.Warn()
	}
	event.Err(err).Str("service", service).Str("path", c.Request.URL.Path).Msg("request failed, returning fault")

	c.Data(http.StatusInternalServerError, soap.ContentType, []byte(soap.BuildFault(err.Error())))
}
