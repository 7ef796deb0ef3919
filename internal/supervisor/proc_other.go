// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package supervisor

import "os/exec"

func configureProcess(*exec.Cmd) {}
