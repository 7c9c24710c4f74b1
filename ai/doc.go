// Package ai defines the contracts for the model-backed collaborators:
// text embedding and structured field extraction. Implementations live
// in subpackages; consumers depend only on the interfaces here.
package ai
