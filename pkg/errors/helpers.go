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

package errors

import "errors"

// As is errors.As: it finds the first error in err's tree that matches
// target and, if one does, sets target to it. It exists only because KindOf needs exactly this
// one call; every other error site in this module calls the standard
// library's errors.Is/errors.As/fmt.Errorf directly rather than going
// through a second, parallel set of wrappers.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
