package session

import (
	"context"
	"fmt"

	"github.com/voxhive/voxhive/internal/music"
	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/internal/tools"
	"github.com/voxhive/voxhive/pkg/types"
)

// registerBuiltinTools installs the session-bound tools the model can call.
// Handlers close over the session; they run on dispatcher goroutines while
// a reply is in flight.
func (s *Session) registerBuiltinTools() {
	s.tools.RegisterBuiltin(tools.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "self.iot_ctl",
			Description: "操控用户设备上的硬件能力，例如开关灯、调节设置。registered capabilities: " + s.registry.Describe(),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":       map[string]any{"type": "string", "description": "capability name, e.g. Speaker"},
					"method":     map[string]any{"type": "string", "description": "method to invoke"},
					"parameters": map[string]any{"type": "object", "description": "method parameters"},
				},
				"required": []string{"name", "method"},
			},
		},
		Handler: s.toolIoTControl,
	})

	s.tools.RegisterBuiltin(tools.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "self.get_device_state",
			Description: "查询用户设备上某个能力的当前属性值，例如音量、亮度。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":     map[string]any{"type": "string", "description": "capability name"},
					"property": map[string]any{"type": "string", "description": "property to read"},
				},
				"required": []string{"name", "property"},
			},
		},
		Handler: s.toolDeviceState,
	})

	s.tools.RegisterBuiltin(tools.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "self.change_volume",
			Description: "调整设备扬声器音量，取值 0 到 100。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"volume": map[string]any{"type": "integer", "description": "target volume, 0-100"},
				},
				"required": []string{"volume"},
			},
		},
		Handler: s.toolChangeVolume,
	})

	s.tools.RegisterBuiltin(tools.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "self.play_music",
			Description: "播放本地音乐。传入歌名，留空则随机播放。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"song_name": map[string]any{"type": "string", "description": "requested song title"},
				},
			},
		},
		Handler: s.toolPlayMusic,
	})

	s.tools.RegisterBuiltin(tools.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "self.handle_exit_intent",
			Description: "当用户明确表示要结束对话时调用，说完告别语后结束本次会话。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"say_goodbye": map[string]any{"type": "string", "description": "farewell to speak"},
				},
			},
		},
		Handler: s.toolExit,
	})
}

// toolIoTControl validates and sends one capability method invocation.
func (s *Session) toolIoTControl(ctx context.Context, args map[string]any) (tools.Result, error) {
	name, _ := args["name"].(string)
	method, _ := args["method"].(string)
	if name == "" || method == "" {
		return tools.Result{}, fmt.Errorf("session: iot_ctl requires name and method")
	}
	params, _ := args["parameters"].(map[string]any)

	cmd, err := s.registry.Invoke(name, method, params)
	if err != nil {
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: fmt.Sprintf("设备不支持该操作: %v", err)}, nil
	}
	if err := s.sendJSON(protocol.NewIoT(cmd)); err != nil {
		return tools.Result{}, fmt.Errorf("session: send iot command: %w", err)
	}
	return tools.Result{Kind: tools.ActionResponse, Text: "好的，已经帮你操作了。"}, nil
}

// toolDeviceState reads a capability property; the value goes back through
// the model so it can phrase the answer.
func (s *Session) toolDeviceState(ctx context.Context, args map[string]any) (tools.Result, error) {
	name, _ := args["name"].(string)
	prop, _ := args["property"].(string)
	if name == "" || prop == "" {
		return tools.Result{}, fmt.Errorf("session: get_device_state requires name and property")
	}

	value, ok := s.registry.Property(name, prop)
	if !ok {
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: fmt.Sprintf("设备没有上报 %s 的 %s 属性。", name, prop)}, nil
	}
	return tools.Result{Kind: tools.ActionRequestLLM,
		Text: fmt.Sprintf("当前 %s 的 %s 是 %v。", name, prop, value)}, nil
}

// toolChangeVolume sets the Speaker volume.
func (s *Session) toolChangeVolume(ctx context.Context, args map[string]any) (tools.Result, error) {
	vol, ok := args["volume"].(float64)
	if !ok || vol < 0 || vol > 100 {
		return tools.Result{}, fmt.Errorf("session: change_volume requires volume in 0..100, got %v", args["volume"])
	}

	cmd, err := s.registry.Invoke("Speaker", "SetVolume", map[string]any{"volume": int(vol)})
	if err != nil {
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: fmt.Sprintf("设备不支持音量调节: %v", err)}, nil
	}
	if err := s.sendJSON(protocol.NewIoT(cmd)); err != nil {
		return tools.Result{}, fmt.Errorf("session: send volume command: %w", err)
	}
	return tools.Result{Kind: tools.ActionResponse,
		Text: fmt.Sprintf("好的，音量已经调到%d了。", int(vol))}, nil
}

// toolPlayMusic resolves a track, stashes its frames for the dispatcher, and
// answers with the announcement that precedes playback.
func (s *Session) toolPlayMusic(ctx context.Context, args map[string]any) (tools.Result, error) {
	if s.cfg.Library == nil {
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: "本地没有配置音乐目录。"}, nil
	}
	requested, _ := args["song_name"].(string)

	file, ok := s.cfg.Library.Match(requested)
	if !ok {
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: "本地音乐目录是空的，没有可以播放的歌曲。"}, nil
	}
	frames, err := s.cfg.Library.LoadFrames(file)
	if err != nil {
		s.log.Warn("loading music for tool failed", "file", file, "error", err)
		return tools.Result{Kind: tools.ActionRequestLLM,
			Text: fmt.Sprintf("播放 %s 失败了。", file)}, nil
	}

	s.volatileMu.Lock()
	s.pendingMusic = frames
	s.volatileMu.Unlock()

	return tools.Result{Kind: tools.ActionResponse, Text: music.Announcement(file)}, nil
}

// toolExit speaks a farewell and requests teardown once the reply finishes.
func (s *Session) toolExit(ctx context.Context, args map[string]any) (tools.Result, error) {
	s.closeAfterReply.Store(true)

	goodbye, _ := args["say_goodbye"].(string)
	if goodbye == "" {
		goodbye = defaultGoodbye
	}
	return tools.Result{Kind: tools.ActionResponse, Text: goodbye}, nil
}
