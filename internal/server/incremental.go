package server

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	eventbus "github.com/hanpama/protograph/internal/eventbus"
	events "github.com/hanpama/protograph/internal/events"
	language "github.com/hanpama/protograph/internal/language"
)

// incrementalBoundary is the multipart boundary used for @defer/@stream
// responses, matching the graphql-over-http incremental delivery
// convention (a single-character boundary keeps framing overhead low).
const incrementalBoundary = "-"

// executeIncremental runs req through the incremental-delivery-aware
// executor entry point and streams the result as a multipart/mixed
// response: the initial payload as the first part, followed by one part
// per drained SubsequentResult until hasNext is false.
func (h *Handler) executeIncremental(ctx context.Context, w http.ResponseWriter, req GraphQLRequest) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		if ge, ok := err.(*language.Error); ok {
			writeJSON(w, http.StatusBadRequest, errorResponse(nil, ge), h.opt.Pretty)
		} else {
			writeJSON(w, http.StatusBadRequest, errorResponse(nil, &language.Error{Message: err.Error()}), h.opt.Pretty)
		}
		return
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	opType := ""
	if opDef != nil {
		opType = string(opDef.Operation)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})

	init, sub := h.exec.ExecuteRequestIncremental(ctx, doc, req.OperationName, req.Variables, nil)

	if sub == nil {
		eventbus.Publish(ctx, events.GraphQLFinish{Query: req.Query, OperationName: req.OperationName, OperationType: opType, Duration: time.Since(start)})
		writeJSON(w, http.StatusOK, init, h.opt.Pretty)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, incrementalBoundary))
	w.WriteHeader(http.StatusOK)

	mw := multipart.NewWriter(w)
	_ = mw.SetBoundary(incrementalBoundary)
	writeIncrementalPart(mw, flusher, canFlush, init)

	defer func() {
		_ = sub.Return(ctx)
		_ = mw.Close()
		eventbus.Publish(ctx, events.GraphQLFinish{Query: req.Query, OperationName: req.OperationName, OperationType: opType, Duration: time.Since(start)})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, more, err := sub.Next(ctx)
		if err != nil || !more {
			return
		}
		writeIncrementalPart(mw, flusher, canFlush, result)
		if !result.HasNext {
			return
		}
	}
}

func writeIncrementalPart(mw *multipart.Writer, flusher http.Flusher, canFlush bool, payload any) {
	header := textproto.MIMEHeader{"Content-Type": {"application/json; charset=utf-8"}}
	pw, err := mw.CreatePart(header)
	if err != nil {
		return
	}
	_ = json.NewEncoder(pw).Encode(payload)
	if canFlush {
		flusher.Flush()
	}
}
