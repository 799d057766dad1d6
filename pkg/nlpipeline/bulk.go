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

package nlpipeline

import (
	"context"
	"fmt"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

// ExecuteBulkDelete runs a confirmed __ALL__ DELETE against store,
// cascading subtasks -> tasks -> stories -> epics inside the store's
// own transaction. variant == "" deletes every tier.
func ExecuteBulkDelete(ctx context.Context, store state.WorkItemStore, projectID string, entities []EntityType) (state.DeleteCounts, error) {
	variant, err := resolveBulkVariant(entities)
	if err != nil {
		return state.DeleteCounts{}, err
	}
	counts, err := store.DeleteAllOf(ctx, projectID, variant)
	if err != nil {
		return counts, errs.StorageFault("nlpipeline.execute_bulk_delete", err)
	}
	return counts, nil
}

// ProjectDeleteCounts estimates, without deleting anything, how many
// rows a bulk DELETE would remove per tier, for the confirmation
// prompt. Unlike ExecuteBulkDelete/DeleteAllOf it does not see the
// store's cascade: when entities names a single tier, only that
// tier's own row count is known ahead of time, not the children a
// real delete would cascade into. Naming no tier (or more than one)
// still projects every tier's current row count.
func ProjectDeleteCounts(ctx context.Context, store state.WorkItemStore, projectID string, entities []EntityType) (state.DeleteCounts, error) {
	variant, err := resolveBulkVariant(entities)
	if err != nil {
		return state.DeleteCounts{}, err
	}

	count := func(v state.Variant) (int, error) {
		items, err := store.ListWorkItems(ctx, state.ListOptions{ProjectID: projectID, Variant: v})
		if err != nil {
			return 0, errs.StorageFault("nlpipeline.project_delete_counts", err)
		}
		return len(items), nil
	}

	var counts state.DeleteCounts
	for _, v := range []state.Variant{state.VariantSubtask, state.VariantTask, state.VariantStory, state.VariantEpic} {
		if variant != "" && variant != v {
			continue
		}
		n, err := count(v)
		if err != nil {
			return state.DeleteCounts{}, err
		}
		switch v {
		case state.VariantSubtask:
			counts.Subtasks = n
		case state.VariantTask:
			counts.Tasks = n
		case state.VariantStory:
			counts.Stories = n
		case state.VariantEpic:
			counts.Epics = n
		}
	}
	return counts, nil
}

// resolveBulkVariant maps the entity-type set from a bulk command to
// the single state.Variant DeleteAllOf accepts, or "" to mean every
// variant when the sentence named no specific tier (e.g. "delete
// everything").
func resolveBulkVariant(entities []EntityType) (state.Variant, error) {
	if len(entities) == 0 {
		return "", nil
	}
	if len(entities) > 1 {
		// A multi-tier bulk delete ("delete all epics, stories and
		// tasks") still resolves to the whole-project cascade: the
		// store's DeleteAllOf already walks every tier in cascade
		// order, so naming more than one tier is equivalent to naming
		// none.
		return "", nil
	}
	v, ok := entities[0].Variant()
	if !ok {
		return "", fmt.Errorf("nlpipeline: %s has no work-item variant to bulk delete", entities[0])
	}
	return v, nil
}
