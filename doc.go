// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package glowroot implements the in-process transaction tracing engine
// of an application performance monitor: a per-goroutine tree of timed
// trace entries organized into transactions, a parallel timer tree, and
// the periodic aggregate that folds completed transactions into
// per-(type,name) summaries.
//
// Persistent storage, the HTTP/UI layer, configuration file parsing,
// plugin discovery, and bytecode instrumentation are external
// collaborators, referenced only through the interfaces in config.go
// and collector.go.
package glowroot
