// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package auth implements authentication and authorization for
// PhotoStream: password hashing, JWT issuance and verification, the
// principal snapshot cache, the identity resolver, role checks, and the
// account lifecycle (signup, email confirmation, password recovery).
//
// The package defines the UserRepository and SessionCache ports;
// internal/auth/postgres and internal/cache provide the adapters.
package auth
