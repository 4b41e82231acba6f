// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import "github.com/z5labs/strata/value"

// AccumulatorTrueHandled is an [Accumulator] for boolean signals which
// stops the emission as soon as a closure returns true.
func AccumulatorTrueHandled(_ *InvocationHint, accu, handlerReturn *value.Value) bool {
	handled := handlerReturn.Bool()
	accu.SetBool(handled)
	return !handled
}

// AccumulatorFirstWins is an [Accumulator] keeping the return value of
// the first closure invoked and stopping the emission.
func AccumulatorFirstWins(_ *InvocationHint, accu, handlerReturn *value.Value) bool {
	handlerReturn.Copy(accu)
	return false
}
