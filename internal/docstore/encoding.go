// Copyright 2026 The Orchestrator Kernel Authors
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

package docstore

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// documentIDSeedBytes is N in document_id = sha256(dataset + filename +
// content[:N]) (spec §4.2).
const documentIDSeedBytes = 256

// documentID computes the deterministic content hash identifying a
// document within the store.
func documentID(dataset Dataset, filename, content string) string {
	seed := content
	if len(seed) > documentIDSeedBytes {
		seed = seed[:documentIDSeedBytes]
	}
	h := sha256.New()
	h.Write([]byte(dataset))
	h.Write([]byte{0})
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// encodeEmbedding packs a float32 vector as little-endian bytes (spec §6:
// "embeddings stored as little-endian packed f32 BLOBs").
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks bytes written by encodeEmbedding.
func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
