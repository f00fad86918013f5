package manager

import (
	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/channel"
)

// DefaultChannels returns one AgentChannel per provider family, wired to
// the transport spec §6 assigns it: Claude drives a fresh CLI subprocess
// per turn, Gemini and Codex drive a persistent app-server runtime.
func DefaultChannels() map[agentkind.Kind]channel.AgentChannel {
	return map[agentkind.Kind]channel.AgentChannel{
		agentkind.Claude: channel.NewCliChannel(channel.NewClaudeBackend()),
		agentkind.Gemini: channel.NewAppServerChannel(string(agentkind.Gemini), channel.AppServerBackend{
			Command: "gemini",
			BuildArgs: func(channel.TurnRequest) []string {
				return []string{"--experimental-acp"}
			},
		}),
		agentkind.Codex: channel.NewAppServerChannel(string(agentkind.Codex), channel.AppServerBackend{
			Command: "codex",
			BuildArgs: func(req channel.TurnRequest) []string {
				return []string{"app-server", "--model", req.Model}
			},
		}),
	}
}
