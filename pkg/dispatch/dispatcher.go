package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradepulse/riskcore/pkg/backend"
	"github.com/tradepulse/riskcore/pkg/models"
)

// AllowedProfitTargets are the only percentage-of-position profit targets
// the UI offers; anything else is rejected before it reaches the backend.
var AllowedProfitTargets = []int{10, 15, 25, 50, 75, 100}

// StalePositionError means a command referenced a position that is no
// longer open in the latest snapshot (typically a stale UI acting on a
// position that closed underneath it).
type StalePositionError struct {
	PositionID string
}

func (e *StalePositionError) Error() string {
	return fmt.Sprintf("position %s is not open in the latest snapshot", e.PositionID)
}

// ValidationError is a synchronous precondition failure; nothing was
// forwarded to the backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid command: %s %s", e.Field, e.Reason)
}

// PositionLookup answers whether a position is open in the latest
// published snapshot. The evaluation actor implements it.
type PositionLookup interface {
	OpenPosition(positionID string) (*models.Position, bool)
}

// Dispatcher translates user intent into commands for the execution
// backend. It validates preconditions only; it never places orders.
type Dispatcher struct {
	backend backend.Client
	lookup  PositionLookup
	logger  *logrus.Logger
}

func NewDispatcher(client backend.Client, lookup PositionLookup, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		backend: client,
		lookup:  lookup,
		logger:  logger,
	}
}

func (d *Dispatcher) CloseAll(ctx context.Context, positionID string) (*models.CommandResult, error) {
	pos, err := d.openPosition(positionID)
	if err != nil {
		return nil, err
	}

	return d.submit(ctx, &models.PositionCommand{
		Type:       models.CommandCloseAll,
		PositionID: positionID,
		Symbol:     pos.Symbol,
		CreatedAt:  time.Now(),
	})
}

func (d *Dispatcher) CloseAtProfitTarget(ctx context.Context, positionID string, targetPct int) (*models.CommandResult, error) {
	if !allowedTarget(targetPct) {
		return nil, &ValidationError{
			Field:  "targetPct",
			Reason: fmt.Sprintf("%d is not one of %v", targetPct, AllowedProfitTargets),
		}
	}

	pos, err := d.openPosition(positionID)
	if err != nil {
		return nil, err
	}

	return d.submit(ctx, &models.PositionCommand{
		Type:          models.CommandCloseAtTarget,
		PositionID:    positionID,
		Symbol:        pos.Symbol,
		TargetPercent: targetPct,
		CreatedAt:     time.Now(),
	})
}

func (d *Dispatcher) Reverse(ctx context.Context, positionID string) (*models.CommandResult, error) {
	pos, err := d.openPosition(positionID)
	if err != nil {
		return nil, err
	}

	return d.submit(ctx, &models.PositionCommand{
		Type:       models.CommandReverse,
		PositionID: positionID,
		Symbol:     pos.Symbol,
		CreatedAt:  time.Now(),
	})
}

func (d *Dispatcher) openPosition(positionID string) (*models.Position, error) {
	if positionID == "" {
		return nil, &ValidationError{Field: "positionId", Reason: "is required"}
	}
	pos, ok := d.lookup.OpenPosition(positionID)
	if !ok {
		return nil, &StalePositionError{PositionID: positionID}
	}
	return pos, nil
}

func (d *Dispatcher) submit(ctx context.Context, cmd *models.PositionCommand) (*models.CommandResult, error) {
	d.logger.WithFields(logrus.Fields{
		"type":        cmd.Type,
		"position_id": cmd.PositionID,
		"symbol":      cmd.Symbol,
	}).Info("Dispatching position command")

	return d.backend.SubmitCommand(ctx, cmd)
}

func allowedTarget(pct int) bool {
	for _, t := range AllowedProfitTargets {
		if t == pct {
			return true
		}
	}
	return false
}
