package reconcile

import (
	"fmt"

	"github.com/ultracoach/reconcile/command"
	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/query"
)

// WorkoutReadWriteStore is the full workout surface the engine needs: the
// orchestrator writes through it and the match query lists candidates from
// it. The SQL-backed workout store satisfies it.
type WorkoutReadWriteStore interface {
	core.WorkoutStore
	query.WorkoutCandidateLister
}

type Commands struct {
	SyncActivity   *command.SyncActivityCommand
	BulkSync       *command.BulkSyncCommand
	MergeActivity  *command.MergeActivityCommand
	SavePreference *command.SavePreferenceCommand
}

type Queries struct {
	GetWorkout           *query.GetWorkoutQuery
	MatchWorkouts        *query.MatchWorkoutsQuery
	GetSyncRecord        *query.GetSyncRecordQuery
	GetWorkoutSyncRecord *query.GetWorkoutSyncRecordQuery
	GetConnection        *query.GetConnectionQuery
	GetPreference        *query.GetPreferenceQuery
}

// FacadeDependencies name everything the command/query surface reads or
// writes. Links may be nil; workout reads then require ownership.
type FacadeDependencies struct {
	Service     command.MutatingService
	Workouts    WorkoutReadWriteStore
	Records     query.SyncRecordReader
	Connections query.ConnectionReader
	Preferences core.PreferenceStore
	Links       query.AccessChecker
}

// Facade bundles the dispatchable command and query handlers for one
// engine. Web or job layers hold one Facade and never touch the
// orchestrator directly.
type Facade struct {
	service  command.MutatingService
	commands Commands
	queries  Queries
}

func NewFacade(deps FacadeDependencies) (*Facade, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("reconcile: mutating service is required")
	}
	if deps.Workouts == nil {
		return nil, fmt.Errorf("reconcile: workout store is required")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("reconcile: sync record reader is required")
	}
	if deps.Connections == nil {
		return nil, fmt.Errorf("reconcile: connection reader is required")
	}
	if deps.Preferences == nil {
		return nil, fmt.Errorf("reconcile: preference store is required")
	}

	facade := &Facade{service: deps.Service}
	facade.commands = Commands{
		SyncActivity:   command.NewSyncActivityCommand(deps.Service),
		BulkSync:       command.NewBulkSyncCommand(deps.Service),
		MergeActivity:  command.NewMergeActivityCommand(deps.Service),
		SavePreference: command.NewSavePreferenceCommand(deps.Preferences),
	}
	facade.queries = Queries{
		GetWorkout:           query.NewGetWorkoutQuery(deps.Workouts, deps.Links),
		MatchWorkouts:        query.NewMatchWorkoutsQuery(deps.Workouts),
		GetSyncRecord:        query.NewGetSyncRecordQuery(deps.Records),
		GetWorkoutSyncRecord: query.NewGetWorkoutSyncRecordQuery(deps.Records),
		GetConnection:        query.NewGetConnectionQuery(deps.Connections),
		GetPreference:        query.NewGetPreferenceQuery(deps.Preferences),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() command.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}
