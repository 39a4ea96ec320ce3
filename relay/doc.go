// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay talks to a third-party blob store that holds one
// token per path, such as https://up.10kb.site/. It carries the answer
// back to the host in one-way mode, where the client cannot paste
// anything to the host.
//
// The store protocol is plain HTTP: POST <base><location> with a
// text/plain body stores the token (200 or 201 on success), and GET
// <base><location> returns it (404 until something has been stored).
//
// [Client.Upload] is a single attempt with no retries. [Client.Poll]
// repeats GET on an interval read from a lib/clock Clock until the
// token appears, the context ends, or the store returns an error.
// [MemoryStore] implements the same protocol in process for tests.
package relay
