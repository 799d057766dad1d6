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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteCountsDescribe(t *testing.T) {
	cases := []struct {
		counts DeleteCounts
		want   string
	}{
		{DeleteCounts{}, "nothing"},
		{DeleteCounts{Tasks: 1, Stories: 1, Epics: 1}, "1 task, 1 story, 1 epic"},
		{DeleteCounts{Subtasks: 2, Tasks: 3}, "2 subtasks, 3 tasks"},
		{DeleteCounts{Epics: 1}, "1 epic"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.counts.Describe())
	}
}
