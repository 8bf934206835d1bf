// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
)

func TestExitCode_NilIsGraceful(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
}

func TestExitCode_ShutdownIsGraceful(t *testing.T) {
	assert.Equal(t, 0, exitCode(loaderrors.Shutdown))
}

func TestExitCode_ConfigurationErrorIsTwo(t *testing.T) {
	assert.Equal(t, 2, exitCode(loaderrors.ConfigurationError{Reason: "bad region"}))
}

func TestExitCode_StringWrappedConfigurationErrorIsOne(t *testing.T) {
	err := errors.New("wrapped: " + loaderrors.ConfigurationError{Reason: "bad region"}.Error())
	assert.Equal(t, 1, exitCode(err)) // plain string wrap, not errors.As-compatible
}

func TestExitCode_OtherErrorIsOne(t *testing.T) {
	assert.Equal(t, 1, exitCode(loaderrors.RuntimeError{Reason: "boom"}))
}
