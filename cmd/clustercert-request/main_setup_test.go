package main

import (
	"os"
	"testing"

	"clustercert/internal/platform/logger"
	"clustercert/internal/platform/testkit"
)

// logs collects every line the command writes through the logger
var logs testkit.Buffer

func TestMain(m *testing.M) {
	logger.Init(logger.Options{Level: "info", Format: "json", Writer: &logs})
	os.Exit(m.Run())
}
