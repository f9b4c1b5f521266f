package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// WriteSuccess writes payload flattened next to "success": true.
func WriteSuccess(w http.ResponseWriter, payload any) {
	WriteSuccessStatus(w, http.StatusOK, payload)
}

// WriteSuccessStatus flattens object payloads into the envelope. Anything that
// does not encode to a JSON object is placed under "data".
func WriteSuccessStatus(w http.ResponseWriter, status int, payload any) {
	writeFlattened(w, status, payload, true, "")
}

// WriteFailure reports a recoverable outcome: "success": false plus message,
// with payload fields kept alongside so the client can still act on them.
func WriteFailure(w http.ResponseWriter, status int, message string, payload any) {
	writeFlattened(w, status, payload, false, message)
}

func writeFlattened(w http.ResponseWriter, status int, payload any, success bool, message string) {
	body, err := flatten(payload, success, message)
	if err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
		writeJSON(w, http.StatusInternalServerError, types.ErrorEnvelope{
			Code:    string(pkgerrors.CodeInternal),
			Message: pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage,
		})
		return
	}
	writeRaw(w, status, body)
}

// WriteMessage writes a success envelope that only carries a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.MessageEnvelope{Success: true, Message: message})
}

// WriteError renders err as a failure envelope. Client-facing codes carry
// their own message; everything else is logged with its full chain and
// answered with the code's public message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	public := pkgerrors.PublicOf(err)

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if public.Status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, public.Status, types.ErrorEnvelope{
		Message: public.Message,
		Code:    string(public.Code),
		Details: public.Details,
	})
}

func flatten(payload any, success bool, message string) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &fields); err != nil {
				return nil, err
			}
		} else if !bytes.Equal(trimmed, []byte("null")) {
			fields["data"] = raw
		}
	}
	fields["success"] = json.RawMessage(strconv.FormatBool(success))
	if message != "" {
		encoded, err := json.Marshal(message)
		if err != nil {
			return nil, err
		}
		fields["message"] = encoded
	}
	return json.Marshal(fields)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Printf(`{"level":"error","msg":"failed to write response","err":"%v"}`, err)
	}
}
