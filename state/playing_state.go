package state

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/network"
	"github.com/wfunc/chaseserver/ranking"
)

// PlayingState 对局进行状态：驱动倒计时并处理实时意图。
// 所有对局判定（碰撞、拾取、胜负）都以 match 持有的权威状态为准。
type PlayingState struct {
	RoomStateBase
	match         *game.Match
	settler       Settler
	lastRemaining int
}

// NewPlayingState 创建对局状态
func NewPlayingState(room RoomContext, match *game.Match, settler Settler) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{
			ID:   StatusPlaying,
			Room: room,
		},
		match:         match,
		settler:       settler,
		lastRemaining: match.Map.TimeLimit + 1,
	}
}

// OnEnter 广播初始对局快照
func (s *PlayingState) OnEnter() {
	logger.Log.Infof("房间 %s 开始对局，地图 %s，时长 %d 秒",
		s.Room.GetID(), s.match.Map.Key, s.match.Map.TimeLimit)
	s.Room.Publish(network.EventGameStarted, map[string]interface{}{
		"gameState": s.match.Snapshot(),
		"map":       s.match.Map.Key,
	})
}

func (s *PlayingState) OnExit() {
	logger.Log.Infof("房间 %s 对局结束", s.Room.GetID())
}

// OnUpdate runs on the room loop. It owns the 1 Hz countdown broadcast,
// effect expiry, and the authoritative win checks; a stalled client can
// therefore never stop the clock.
func (s *PlayingState) OnUpdate() {
	if s.match.Ended() {
		return
	}

	for _, eff := range s.match.ExpireEffects() {
		s.Room.Publish(network.EventPowerupEnded, map[string]interface{}{
			"role": eff.Role,
			"type": eff.Type,
		})
	}

	remaining := s.match.Remaining()
	if remaining <= 0 {
		s.endMatch(game.RoleCop, game.EndTimeout)
		return
	}
	if remaining < s.lastRemaining {
		s.lastRemaining = remaining
		s.Room.Publish(network.EventTimeUpdate, map[string]interface{}{
			"remaining": remaining,
		})
	}

	s.checkOutcome()
}

type moveIntent struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type coinIntent struct {
	CoinIndex int `json:"coinIndex"`
}

type powerupIntent struct {
	PowerupIndex int `json:"powerupIndex"`
}

// HandleIntent applies one in-match client intent. Intents referencing a
// spectator or arriving after the outcome is decided are dropped quietly;
// late packets from a laggy client are expected, not an error.
func (s *PlayingState) HandleIntent(player PlayerRef, event string, data []byte) error {
	if !player.Role.Valid() {
		return nil
	}

	switch event {
	case network.IntentPlayerMove, network.IntentPlayerInput:
		return s.handleMove(player, event, data)

	case network.IntentCollectCoin:
		var req coinIntent
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("malformed coin intent: %w", err)
		}
		if collected, ok := s.match.CollectCoin(player.Role, req.CoinIndex); ok {
			s.Room.Publish(network.EventCoinCollected, map[string]interface{}{
				"coinIndex":      req.CoinIndex,
				"totalCollected": collected,
			})
			s.checkOutcome()
		}

	case network.IntentCollectPowerup:
		var req powerupIntent
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("malformed powerup intent: %w", err)
		}
		if typ, duration, ok := s.match.CollectPowerup(player.Role, req.PowerupIndex); ok {
			s.Room.Publish(network.EventPowerupCollected, map[string]interface{}{
				"role":         player.Role,
				"powerupIndex": req.PowerupIndex,
				"powerupType":  typ,
				"duration":     duration,
			})
		}

	case network.IntentUseTeleporter:
		if x, y, ok := s.match.UseTeleporter(player.Role); ok {
			s.Room.Publish(network.EventPlayerTeleported, map[string]interface{}{
				"role": player.Role,
				"x":    x,
				"y":    y,
			})
			s.checkOutcome()
		}

	case network.IntentPlayerCaught:
		// Only meaningful when positions are client-trusted; the validated
		// mode decides catches itself.
		if s.match.TrustClient {
			s.endMatch(game.RoleCop, game.EndCaught)
		}

	case network.IntentPlayerEscaped:
		if s.match.TrustClient {
			s.endMatch(game.RoleCriminal, game.EndEscaped)
		}

	default:
		logger.Log.Debugf("room %s: dropping intent %s in playing state", s.Room.GetID(), event)
	}
	return nil
}

func (s *PlayingState) handleMove(player PlayerRef, event string, data []byte) error {
	var req moveIntent
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("malformed move intent: %w", err)
	}

	var (
		x, y  float64
		moved bool
	)
	if s.match.TrustClient && event == network.IntentPlayerInput {
		x, y, moved = s.match.SetPosition(player.Role, req.X, req.Y)
	} else {
		x, y, moved = s.match.Move(player.Role, req.DX, req.DY)
	}
	if !moved {
		return nil
	}

	// The mover already knows its own position; only the opponent and
	// spectators need the update.
	s.Room.PublishExcept(player.SessionID, network.EventPlayerMoved, map[string]interface{}{
		"role": player.Role,
		"x":    x,
		"y":    y,
	})
	s.checkOutcome()
	return nil
}

// checkOutcome runs the server-side catch and escape detection.
func (s *PlayingState) checkOutcome() {
	if s.match.CheckCatch() {
		s.endMatch(game.RoleCop, game.EndCaught)
		return
	}
	if s.match.CheckEscape() {
		s.endMatch(game.RoleCriminal, game.EndEscaped)
	}
}

// endMatch decides the outcome exactly once, settles ratings and hands the
// room to the finished state. Racing callers lose on SetOutcome.
func (s *PlayingState) endMatch(winner game.Role, reason game.EndReason) {
	if !s.match.SetOutcome(winner, reason) {
		return
	}

	s.Room.SetStatus(StatusFinished)

	gameTime := s.match.Elapsed()
	collected, total := s.match.CoinsCount()

	var rankings *ranking.MatchResult
	criminal, hasCriminal := s.Room.PlayerByRole(game.RoleCriminal)
	cop, hasCop := s.Room.PlayerByRole(game.RoleCop)
	if s.settler != nil && hasCriminal && hasCop {
		rankings = s.settler.SettleMatch(criminal, cop, ranking.GameOutcome{
			Winner:         winner,
			Reason:         reason,
			GameTime:       gameTime,
			TimeLimit:      s.match.Map.TimeLimit,
			CoinsCollected: collected,
			TotalCoins:     total,
			MapKey:         s.match.Map.Key,
			RoomID:         s.Room.GetID(),
		})
	}

	s.Room.Publish(network.EventGameEnded, map[string]interface{}{
		"winner":         winner,
		"reason":         reason,
		"gameTime":       gameTime,
		"coinsCollected": collected,
		"totalCoins":     total,
		"rankings":       rankings,
	})

	logger.Log.Infof("房间 %s 对局结束: %s 获胜 (%s)", s.Room.GetID(), winner, reason)

	if err := s.Room.ChangeState(NewFinishedState(s.Room)); err != nil {
		logger.Log.Errorf("room %s: failed to enter finished state: %v", s.Room.GetID(), err)
	}
}
