/*
Copyright 2025 The realtime-optimizer Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package artifacts

import (
	"fmt"
)

// Class identifies the kind of artifact stored under a logical key.
// Each class has its own decoder and storage prefix.
type Class string

const (
	// ClassModel is a serialized inference model.
	ClassModel Class = "model"

	// ClassScaler holds per-variable input/output scaling parameters.
	ClassScaler Class = "scaler"

	// ClassMetadata is auxiliary model metadata (shapes, training info).
	ClassMetadata Class = "metadata"

	// ClassStrategy is a declarative strategy document.
	ClassStrategy Class = "strategy"
)

// Classes lists every known artifact class, in storage-prefix order.
func Classes() []Class {
	return []Class{ClassModel, ClassScaler, ClassMetadata, ClassStrategy}
}

// Valid reports whether c names a known artifact class.
func (c Class) Valid() bool {
	switch c {
	case ClassModel, ClassScaler, ClassMetadata, ClassStrategy:
		return true
	}
	return false
}

// Ref identifies one artifact: a class, a logical key within that class,
// and the semantic version it was deployed under.
type Ref struct {
	Class   Class
	Key     string
	Version string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Class, r.Key, r.Version)
}

// ObjectPath is the storage layout convention: one directory per class,
// one object per key and version.
func (r Ref) ObjectPath() string {
	prefix := string(r.Class) + "s"
	ext := ".json"
	if r.Class == ClassStrategy {
		prefix = "strategies"
		ext = ".yaml"
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, r.Key, r.Version, ext)
}
