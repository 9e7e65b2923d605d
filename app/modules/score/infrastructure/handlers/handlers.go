// Package scorehandlers serves the CLE endpoints the game client talks to.
package scorehandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes = 4 << 20

	contentJSON   = "application/json"
	contentBinary = "application/octet-stream"
)

// packSegment is the first path segment: a mappack code optionally followed
// by the mappack version the client was built for.
var packSegment = regexp.MustCompile(`^([A-Za-z]{3})(\d*)$`)

// ParsePack splits a path segment such as CTP2 into code and version. The
// version is 0 when absent.
func ParsePack(segment string) (code string, version int, ok bool) {
	m := packSegment.FindStringSubmatch(segment)
	if m == nil {
		return "", 0, false
	}
	if m[2] != "" {
		version, _ = strconv.Atoi(m[2])
	}
	return m[1], version, true
}

// CLEHandlers routes the game client's requests for custom mappacks and
// forwards everything else to the official server.
type CLEHandlers struct {
	scores    scoreservice.Service
	boards    Boards
	mappacks  Mappacks
	forwarder scoreservice.Forwarder
	forward   bool
	logger    *slog.Logger
}

func NewCLEHandlers(
	scores scoreservice.Service,
	boards Boards,
	mappacks Mappacks,
	forwarder scoreservice.Forwarder,
	forward bool,
	logger *slog.Logger,
) *CLEHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLEHandlers{
		scores:    scores,
		boards:    boards,
		mappacks:  mappacks,
		forwarder: forwarder,
		forward:   forward,
		logger:    logger,
	}
}

// Routes mounts the CLE endpoints.
func (h *CLEHandlers) Routes(r chi.Router) {
	r.Get("/{pack}/prod/steam/{method}", h.Serve)
	r.Post("/{pack}/prod/steam/{method}", h.Serve)
	r.HandleFunc("/prod/steam/{method}", h.Relay)
}

// cleRequest is a decoded client request.
type cleRequest struct {
	method   string
	form     url.Values
	upstream scoreservice.UpstreamRequest
}

func (h *CLEHandlers) decode(w http.ResponseWriter, r *http.Request) (*cleRequest, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	form := url.Values{}
	for k, vs := range r.Form {
		form[k] = append(form[k], vs...)
	}
	// The client may send the replay as a file part.
	if r.MultipartForm != nil {
		for k, files := range r.MultipartForm.File {
			for _, fh := range files {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					return nil, err
				}
				form.Add(k, string(data))
			}
		}
	}

	return &cleRequest{
		method: chi.URLParam(r, "method"),
		form:   form,
		upstream: scoreservice.UpstreamRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     raw,
		},
	}, nil
}

// Serve answers a request addressed to a mappack.
func (h *CLEHandlers) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := attr.WithCorrelationID(r.Context(), r.Header.Get("X-Request-ID"))
	req, err := h.decode(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "Malformed CLE request", attr.ExtractCorrelationID(ctx), attr.Error(err))
		write(w, nil, "")
		return
	}

	code, version, ok := ParsePack(chi.URLParam(r, "pack"))
	if !ok {
		h.relay(ctx, w, req)
		return
	}
	pack, err := h.mappacks.GetMappack(ctx, code)
	switch {
	case errors.Is(err, npp.ErrNotFound):
		h.relay(ctx, w, req)
		return
	case err != nil:
		h.fail(ctx, w, req, err)
		return
	case !pack.Enabled:
		h.relay(ctx, w, req)
		return
	}

	var body []byte
	contentType := contentJSON
	switch {
	case r.Method == http.MethodGet && req.method == "get_scores":
		body, err = h.getScores(ctx, pack.Code, req)
	case r.Method == http.MethodGet && req.method == "get_replay":
		var res *scoreservice.ReplayResult
		res, err = h.scores.GetReplay(ctx, scoreservice.ReplayRequest{Code: pack.Code, Query: req.form, Upstream: req.upstream})
		if err == nil {
			body = res.Body
			contentType = contentBinary
		}
	case r.Method == http.MethodPost && req.method == "submit_score":
		body, err = h.submit(ctx, pack.Code, version, req)
	case r.Method == http.MethodPost && req.method == "login":
		body, err = h.scores.Login(ctx, scoreservice.LoginRequest{Query: req.form, Upstream: req.upstream})
	default:
		h.relay(ctx, w, req)
		return
	}
	if err != nil {
		h.fail(ctx, w, req, err)
		return
	}
	write(w, body, contentType)
}

// Relay forwards a request that is not addressed to a mappack.
func (h *CLEHandlers) Relay(w http.ResponseWriter, r *http.Request) {
	ctx := attr.WithCorrelationID(r.Context(), r.Header.Get("X-Request-ID"))
	req, err := h.decode(w, r)
	if err != nil {
		write(w, nil, "")
		return
	}
	h.relay(ctx, w, req)
}

func (h *CLEHandlers) relay(ctx context.Context, w http.ResponseWriter, req *cleRequest) {
	if !h.forward || h.forwarder == nil {
		write(w, nil, "")
		return
	}
	body, err := h.forwarder.Forward(ctx, req.upstream)
	if err != nil {
		h.logger.WarnContext(ctx, "Forwarding failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("path", req.upstream.Path),
			attr.Error(err),
		)
		body = nil
	}
	write(w, body, contentJSON)
}

func (h *CLEHandlers) getScores(ctx context.Context, code string, req *cleRequest) ([]byte, error) {
	kind, ok := npp.KindFromFields(req.form.Has)
	if !ok {
		return nil, nil
	}
	innerID, err := strconv.Atoi(req.form.Get(kind.IDField()))
	if err != nil {
		return nil, nil
	}
	qt, err := strconv.Atoi(req.form.Get("qt"))
	if err != nil {
		return nil, nil
	}
	player, _ := strconv.ParseInt(req.form.Get("user_id"), 10, 64)

	resp, err := h.boards.GetScores(ctx, leaderboardservice.ScoresQuery{
		Code:     code,
		Kind:     kind,
		InnerID:  innerID,
		QT:       qt,
		PlayerID: player,
	})
	switch {
	case errors.Is(err, npp.ErrNotFound):
		if !h.forward || h.forwarder == nil {
			return nil, nil
		}
		body, ferr := h.forwarder.Forward(ctx, req.upstream)
		if ferr != nil {
			h.logger.WarnContext(ctx, "Forwarding leaderboard failed", attr.ExtractCorrelationID(ctx), attr.Error(ferr))
			return nil, nil
		}
		return body, nil
	case errors.Is(err, npp.ErrFormat):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return json.Marshal(resp)
}

func (h *CLEHandlers) submit(ctx context.Context, code string, version int, req *cleRequest) ([]byte, error) {
	res, err := h.scores.Submit(ctx, scoreservice.SubmitRequest{
		Code:     code,
		Version:  version,
		Query:    req.form,
		Upstream: req.upstream,
	})
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case scoreservice.OutcomeAccepted:
		return json.Marshal(res.Reply)
	case scoreservice.OutcomeForwarded:
		return res.Body, nil
	default:
		return nil, nil
	}
}

func (h *CLEHandlers) fail(ctx context.Context, w http.ResponseWriter, req *cleRequest, err error) {
	h.logger.ErrorContext(ctx, "CLE request failed",
		attr.ExtractCorrelationID(ctx),
		attr.String("path", req.upstream.Path),
		attr.Error(err),
	)
	w.WriteHeader(http.StatusInternalServerError)
}

// write answers with body, or with an empty 400 when body is nil.
func write(w http.ResponseWriter, body []byte, contentType string) {
	if body == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
