package orchestrator

import (
	"github.com/ShayCichocki/sprintguardian/internal/agent/agenttest"
)

type scriptedInvoker = agenttest.Scripted

func newScriptedInvoker(replies map[string]string) *scriptedInvoker {
	return agenttest.NewScripted(replies)
}

const (
	loginReviewRejected = agenttest.LoginReviewRejected
	loginTicket         = agenttest.LoginTicket
)

func loginReplies() map[string]string {
	return agenttest.LoginReplies()
}
