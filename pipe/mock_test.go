// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pipe

// mockPipe is an in-memory, scriptable Pipe used by the tests in this
// package.
type mockPipe struct {
	opens, closes int
	writes        [][]byte
	reads         [][]byte
	readIdx       int
}

func (m *mockPipe) Open() error  { m.opens++; return nil }
func (m *mockPipe) Close() error { m.closes++; return nil }

func (m *mockPipe) Write(b []byte) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	m.writes = append(m.writes, cp)
	return len(b), nil
}

func (m *mockPipe) Read(max int) ([]byte, error) {
	if m.readIdx >= len(m.reads) {
		return nil, nil
	}
	r := m.reads[m.readIdx]
	m.readIdx++
	return r, nil
}
