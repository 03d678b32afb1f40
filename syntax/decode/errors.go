/*
DESCRIPTION
  errors.go provides the kinds of error returned by decoding. Errors returned
  by this package wrap one of these and should be tested with errors.Is.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package decode

import (
	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/grammar"
)

// Error kinds. Each aborts the top level decode call it occurs in.
var (
	// ErrInvalidGrammar is returned when a definition fails its consistency
	// checks as it is reached.
	ErrInvalidGrammar = grammar.ErrInvalid

	// ErrBounds is returned when a field would extend past its limit or the
	// end of the buffer.
	ErrBounds = errors.New("field out of bounds")

	// ErrAlignment is returned when a field or loop that must be byte or
	// nibble aligned is not.
	ErrAlignment = errors.New("field misaligned")

	// ErrUnresolvedReference is returned when a length or condition names a
	// field that cannot be found or is not numeric.
	ErrUnresolvedReference = errors.New("unresolved field reference")

	// ErrNonTerminating is returned when a loop iteration consumes no bits
	// and so would never reach its end.
	ErrNonTerminating = errors.New("loop does not terminate")
)
