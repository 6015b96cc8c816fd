package es

import (
	"io"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/rs/zerolog"
)

// transportLogger adapts zerolog to the Elasticsearch transport's logging
// interface so every round trip lands in the run's structured log.
type transportLogger struct {
	logger zerolog.Logger
	bodies bool
}

func newTransportLogger(logger zerolog.Logger, bodies bool) elastictransport.Logger {
	return &transportLogger{
		logger: logger.With().Str("component", "es-transport").Logger(),
		bodies: bodies,
	}
}

func (l *transportLogger) LogRoundTrip(req *http.Request, res *http.Response, err error, _ time.Time, dur time.Duration) error {
	var event *zerolog.Event
	if err != nil {
		event = l.logger.Error().Err(err)
	} else {
		event = l.logger.Debug()
	}

	if req != nil {
		event = event.Str("method", req.Method).Str("url", req.URL.String())
		if l.bodies && req.Body != nil {
			event = event.Str("request", readBody(req.Body))
		}
	}
	if res != nil {
		event = event.Int("status", res.StatusCode)
		if l.bodies && res.Body != nil {
			event = event.Str("response", readBody(res.Body))
		}
	}

	event.Dur("took", dur).Msg("es round trip")
	return nil
}

// RequestBodyEnabled asks the transport to hand LogRoundTrip a replayable
// copy of the request body.
func (l *transportLogger) RequestBodyEnabled() bool { return l.bodies }

// ResponseBodyEnabled does the same for response bodies.
func (l *transportLogger) ResponseBodyEnabled() bool { return l.bodies }

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	return string(b)
}
