// Copyright 2026 The Harness Authors
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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/harnessdev/harness/internal/jq"
	"github.com/spf13/cobra"
)

var jqExecutor = jq.NewExecutor(0, 0)

// printResult renders data as indented JSON to cmd's output, running it
// through flags.query first if one was given.
func printResult(cmd *cobra.Command, data any) error {
	if flags.query != "" {
		var generic any
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("decoding response for query: %w", err)
		}

		result, err := jqExecutor.Execute(context.Background(), flags.query, generic)
		if err != nil {
			return fmt.Errorf("evaluating query %q: %w", flags.query, err)
		}
		data = result
	}

	return writeJSON(cmd.OutOrStdout(), data)
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
