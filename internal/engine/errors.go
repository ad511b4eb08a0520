package engine

import (
	"errors"
	"fmt"
)

// TranslationError reports which stage of the pipeline failed for a query.
//
// The underlying error is usually a *qerr.Error; qerr's Is helpers see it
// through Unwrap.
type TranslationError struct {
	// Stage identifies where the pipeline stopped.
	Stage Stage

	// Hash is the structural hash of the query, if it got that far.
	Hash string

	// Index is the position of the query in a TranslateAll batch, or -1.
	Index int

	Err error
}

// Stage names a step of the translation pipeline.
type Stage string

const (
	// StageHash covers hashing and parameter collection.
	StageHash Stage = "HASH"

	// StageBind covers validation, binding and planning.
	StageBind Stage = "BIND"

	// StageVerify covers the parameter table check.
	StageVerify Stage = "VERIFY"

	// StagePrint covers SQL printing.
	StagePrint Stage = "PRINT"

	// StageRebind covers re-binding parameter values on a cache hit.
	StageRebind Stage = "REBIND"
)

// Error implements the error interface.
func (e *TranslationError) Error() string {
	switch {
	case e.Index >= 0 && e.Hash != "":
		return fmt.Sprintf("%s: query %d (hash=%s): %v", e.Stage, e.Index, short(e.Hash), e.Err)
	case e.Hash != "":
		return fmt.Sprintf("%s: hash=%s: %v", e.Stage, short(e.Hash), e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s: query %d: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the stage error.
func (e *TranslationError) Unwrap() error { return e.Err }

// StageOf returns the stage err failed in, or "" if err did not come from
// an Engine.
func StageOf(err error) Stage {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}

func stageError(stage Stage, hash string, err error) error {
	return &TranslationError{Stage: stage, Hash: hash, Index: -1, Err: err}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
