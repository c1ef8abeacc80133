package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optica-erp/optica-erp/internal/app"
	_ "github.com/optica-erp/optica-erp/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
