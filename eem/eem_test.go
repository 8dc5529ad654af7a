package eem

import (
	"testing"

	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/session"
	"github.com/ks888/fetctl/testutils"
)

type fixture struct {
	session  *session.Session
	target   *sim.Target
	module   *Module
	recorder *testutils.Recorder
}

func newFixture(t *testing.T, config sim.Config) fixture {
	t.Helper()
	f := testutils.OpenSession(t, config)
	return fixture{session: f.Session, target: f.Target, module: New(f.Session), recorder: f.Recorder}
}
