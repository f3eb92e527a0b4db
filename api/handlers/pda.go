package handlers

import (
	"net/http"
	"net/url"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/trustplay/program/pkg/pda"
)

type PDAResponse struct {
	Kind    string           `json:"kind"`
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

func pubkeyParam(q url.Values, name string) (solana.PublicKey, error) {
	v := q.Get(name)
	if v == "" {
		return solana.PublicKey{}, badRequest("%s is required", name)
	}
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, badRequest("invalid %s: %v", name, err)
	}
	return pk, nil
}

func stringParam(q url.Values, name string) (string, error) {
	v := q.Get(name)
	if v == "" {
		return "", badRequest("%s is required", name)
	}
	return v, nil
}

// DerivePDA derives a program address from query parameters. Kinds and their
// parameters:
//
//	whitelist
//	room         organizer, roomId
//	vault        room
//	participant  room, player
//	claim        room, claimant, claimId
//	voter        claim, voter
//	reputation   player
func (h *Handlers) DerivePDA(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	addr, bump, err := derive(h.cfg.Runtime.Processor().ProgramID(), kind, r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PDAResponse{Kind: kind, Address: addr, Bump: bump})
}

func derive(programID solana.PublicKey, kind string, q url.Values) (solana.PublicKey, uint8, error) {
	var (
		addr solana.PublicKey
		bump uint8
		err  error
	)
	key := func(name string) solana.PublicKey {
		if err != nil {
			return solana.PublicKey{}
		}
		var pk solana.PublicKey
		pk, err = pubkeyParam(q, name)
		return pk
	}
	str := func(name string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = stringParam(q, name)
		return s
	}

	switch kind {
	case "whitelist":
		addr, bump, err = pda.DeriveWhitelist(programID)
		return addr, bump, err
	case "room":
		organizer, roomID := key("organizer"), str("roomId")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveRoom(programID, organizer, roomID)
	case "vault":
		room := key("room")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveVault(programID, room)
	case "participant":
		room, player := key("room"), key("player")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveParticipant(programID, room, player)
	case "claim":
		room, claimant, claimID := key("room"), key("claimant"), str("claimId")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveClaim(programID, room, claimant, claimID)
	case "voter":
		claim, voter := key("claim"), key("voter")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveVoterRecord(programID, claim, voter)
	case "reputation":
		player := key("player")
		if err != nil {
			return addr, 0, err
		}
		addr, bump, err = pda.DeriveReputation(programID, player)
	default:
		return addr, 0, badRequest("unknown PDA kind %q", kind)
	}
	if err != nil {
		return addr, 0, badRequest("%v", err)
	}
	return addr, bump, nil
}
