// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package turnbudget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerTypeDefaults(t *testing.T) {
	b := New(nil)
	res := b.Calculate(Task{TaskType: "debugging"})
	assert.Equal(t, 20, res.MaxTurns)

	res = b.Calculate(Task{TaskType: "documentation"})
	assert.Equal(t, 3, res.MaxTurns)
}

func TestVeryComplexByLOC(t *testing.T) {
	b := New(nil)
	res := b.Calculate(Task{
		Title:        "Refactor authentication across multiple modules",
		EstimatedLOC: 650,
	})
	assert.Equal(t, 20, res.MaxTurns)
}

func TestSimpleTask(t *testing.T) {
	b := New(nil)
	res := b.Calculate(Task{Title: "Fix typo", EstimatedFiles: 1})
	assert.Equal(t, 3, res.MaxTurns)
}

func TestClampsToBounds(t *testing.T) {
	b := New(nil)
	b.Bounds = Bounds{Min: 5, Max: 10}
	res := b.Calculate(Task{TaskType: "debugging"})
	assert.Equal(t, 10, res.MaxTurns)

	res = b.Calculate(Task{TaskType: "documentation"})
	assert.Equal(t, 5, res.MaxTurns)
}

func TestRetryDoublesAndClamps(t *testing.T) {
	b := New(nil)
	next := b.Retry(20, 2.0)
	assert.Equal(t, 30, next, "40 should clamp to the default max of 30")
}
