package processor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// JoinRoom registers player as a participant of room and returns the
// participant address.
func (p *Processor) JoinRoom(ctx context.Context, player, room solana.PublicKey) (solana.PublicKey, error) {
	ix, err := instruction.NewJoinRoom(p.cfg.ProgramID, player, room)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := p.Execute(ctx, ix); err != nil {
		return solana.PublicKey{}, err
	}
	return ix.Participant, nil
}

// checkAcceptsEntries fails unless room is active and its deadline has not
// passed.
func (p *Processor) checkAcceptsEntries(room *state.Room) error {
	if !room.Status.Active() {
		return fmt.Errorf("%w: %s", ErrRoomNotActive, room.Status)
	}
	if now := p.now(); now > room.DeadlineTs {
		return fmt.Errorf("%w: %d > %d", ErrDeadlinePassed, now, room.DeadlineTs)
	}
	return nil
}

func (p *Processor) joinRoom(ctx context.Context, tx ledger.Tx, ix *instruction.JoinRoom) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	if err := p.checkAcceptsEntries(room); err != nil {
		return err
	}
	bump, err := p.expectPDA(ix.Participant, pda.ParticipantSeeds(ix.Room, ix.Player))
	if err != nil {
		return err
	}
	if err := p.allocate(ctx, tx, ix.Player, ix.Participant, state.ParticipantSpace, p.cfg.ProgramID); err != nil {
		return err
	}
	participant := &state.Participant{
		Room:     ix.Room,
		Player:   ix.Player,
		JoinedAt: p.now(),
		Bump:     bump,
	}
	if err := p.store(ctx, tx, ix.Participant, participant, state.ParticipantSpace); err != nil {
		return err
	}
	p.log.Info("processor: player joined", "room", ix.Room, "player", ix.Player)
	return nil
}
