package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	appgame "tori-server/internal/app/game"
	"tori-server/internal/session"
	"tori-server/internal/token"
)

type GameHandlers struct {
	svc    *appgame.Service
	tokens *token.Issuer
	now    func() time.Time
}

func NewGameHandlers(svc *appgame.Service, tokens *token.Issuer) *GameHandlers {
	return &GameHandlers{svc: svc, tokens: tokens, now: time.Now}
}

func httpStatusFor(code session.ResultCode) int {
	switch code {
	case session.Ok:
		return http.StatusOK
	case session.InvalidParameter:
		return http.StatusBadRequest
	case session.AlreadyJoined, session.JoinRejected, session.DuplicateEntry:
		return http.StatusConflict
	case session.SessionNotFound:
		return http.StatusNotFound
	case session.NotJoinedUser:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *GameHandlers) writeCode(w http.ResponseWriter, code session.ResultCode) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(code))
	_ = json.NewEncoder(w).Encode(envelope(code, h.now()))
}

func (h *GameHandlers) writeOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// parseToken authenticates the request body token. Every endpoint past
// loading carries it.
func (h *GameHandlers) parseToken(w http.ResponseWriter, raw string) (token.Data, bool) {
	data, err := h.tokens.Parse(raw)
	if err != nil {
		WriteHTTPError(w, http.StatusUnauthorized, "invalid_token")
		return token.Data{}, false
	}
	return data, true
}

func (h *GameHandlers) Loading() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricLoadingTotal.Add(1)
		var req loadingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricLoadingErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, code := h.svc.Loading(r.Context(), req.UserID, req.RoomID)
		if code != session.Ok {
			metricLoadingErrors.Add(1)
			h.writeCode(w, code)
			return
		}
		h.writeOK(w, loadingResponse{
			apiEnvelope:   envelope(session.Ok, h.now()),
			Token:         resp.Token,
			Constants:     resp.Constants,
			StageID:       resp.StageID,
			Reward:        resp.Reward,
			GameStartTick: resp.GameStartAt.UnixMilli(),
			GameEndTick:   resp.GameEndAt.UnixMilli(),
		})
	}
}

func (h *GameHandlers) GameStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		resp, code := h.svc.GameStart(r.Context(), tok)
		if code != session.Ok {
			h.writeCode(w, code)
			return
		}
		h.writeOK(w, startResponse{
			apiEnvelope:     envelope(session.Ok, h.now()),
			PlayerNicknames: resp.PlayerNicknames,
		})
	}
}

func (h *GameHandlers) PlayData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricPlayDataTotal.Add(1)
		var req playDataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		code, _ := h.svc.PlayData(r.Context(), tok, req.UsedItems)
		h.writeCode(w, code)
	}
}

func (h *GameHandlers) Ranking() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rankingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		resp, code := h.svc.Ranking(r.Context(), tok, req.HostTime, req.ItemCount)
		if code != session.Ok {
			h.writeCode(w, code)
			return
		}
		h.writeOK(w, rankingResponse{
			apiEnvelope: envelope(session.Ok, h.now()),
			MyRank:      toRankEntry(resp.MyRank),
			TopRank:     toRankEntry(resp.TopRank),
		})
	}
}

func (h *GameHandlers) GameEnd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playDataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		resp, code := h.svc.GameEnd(r.Context(), tok, req.UsedItems)
		if code != session.Ok {
			h.writeCode(w, code)
			return
		}
		h.writeOK(w, endResponse{
			apiEnvelope: envelope(session.Ok, h.now()),
			Reward:      resp.Reward,
		})
	}
}

func (h *GameHandlers) GameQuit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playDataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		code, _ := h.svc.GameQuit(r.Context(), tok, req.UsedItems)
		h.writeCode(w, code)
	}
}

func (h *GameHandlers) Result() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricResultQueryTotal.Add(1)
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tok, ok := h.parseToken(w, req.Token)
		if !ok {
			return
		}
		resp, code := h.svc.Result(r.Context(), tok)
		if code != session.Ok {
			h.writeCode(w, code)
			return
		}
		h.writeOK(w, rankingResponse{
			apiEnvelope: envelope(session.Ok, h.now()),
			MyRank:      toRankEntry(resp.MyRank),
			TopRank:     toRankEntry(resp.TopRank),
		})
	}
}
