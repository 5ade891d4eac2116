// Package tasks registers the built-in task handlers.
//
// The production catalog spans several hundred handlers maintained outside
// this repository; the set here covers one or two per business domain so
// every path through the control layer (plain reports, monetary gating,
// irreversible actions, cross-domain blast radius, policy changes) has a
// real handler behind it.
package tasks

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
)

// Register adds the built-in handlers to the builder.
func Register(b *catalog.Builder) {
	b.MustRegister(budgetStructure())
	b.MustRegister(goalSetting())
	b.MustRegister(evacuationPlan())
	b.MustRegister(roomBlockRelease())
	b.MustRegister(campaignLaunch())
	b.MustRegister(accessPolicyUpdate())
	b.MustRegister(staffCompensation())
	b.MustRegister(sessionPlanning())
}

// decode maps a validated input document onto a typed request struct.
func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func budgetStructure() catalog.Descriptor {
	type request struct {
		EventID     string  `json:"event_id"`
		TotalBudget float64 `json:"total_budget"`
		Attendees   int     `json:"attendees"`
	}
	return catalog.Descriptor{
		ID:     "FIN-031",
		Name:   "행사 예산 구조 설계",
		Domain: catalog.DomainFinance,
		Tags:   []string{"예산", "budget", "구조", "비용"},
		Input: schema.Schema{
			"event_id":     schema.String(),
			"total_budget": schema.Number(),
			"attendees":    schema.Optional(schema.Int()),
		},
		Output: schema.Schema{
			"status":     schema.String(),
			"allocation": schema.Map(),
			"insights":   schema.Optional(schema.Map()),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainFinance},
			MonetaryFields:  []string{"total_budget"},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			// Standard split for mid-size corporate events.
			allocation := map[string]any{
				"venue":       req.TotalBudget * 0.30,
				"catering":    req.TotalBudget * 0.25,
				"production":  req.TotalBudget * 0.20,
				"marketing":   req.TotalBudget * 0.15,
				"contingency": req.TotalBudget * 0.10,
			}
			perHead := ""
			if req.Attendees > 0 {
				perHead = fmt.Sprintf("1인당 예산 %.0f원", req.TotalBudget/float64(req.Attendees))
			}
			return map[string]any{
				"status":     "planned",
				"allocation": allocation,
				"insights": map[string]any{
					"analysis":        fmt.Sprintf("행사 %s 예산 %.0f원 기준 표준 배분입니다. %s", req.EventID, req.TotalBudget, perHead),
					"recommendations": []any{"예비비 10%는 행사 2주 전까지 유지하세요"},
				},
			}, nil
		},
	}
}

func goalSetting() catalog.Descriptor {
	type request struct {
		EventID   string   `json:"event_id"`
		Objective string   `json:"objective"`
		Metrics   []string `json:"metrics"`
	}
	return catalog.Descriptor{
		ID:     "STR-001",
		Name:   "행사 목표 수립",
		Domain: catalog.DomainStrategy,
		Tags:   []string{"목표", "goal", "kpi", "지표"},
		Input: schema.Schema{
			"event_id":  schema.String(),
			"objective": schema.String(),
			"metrics":   schema.Optional(schema.Slice(schema.String())),
		},
		Output: schema.Schema{
			"status": schema.String(),
			"goals":  schema.Slice(schema.Map()),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainStrategy},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			metrics := req.Metrics
			if len(metrics) == 0 {
				metrics = []string{"참가자 수", "만족도 점수", "리드 전환율"}
			}
			goals := make([]any, 0, len(metrics))
			for _, m := range metrics {
				goals = append(goals, map[string]any{
					"metric":    m,
					"objective": req.Objective,
				})
			}
			return map[string]any{
				"status": "drafted",
				"goals":  goals,
			}, nil
		},
	}
}

func evacuationPlan() catalog.Descriptor {
	type request struct {
		VenueName string `json:"venue_name"`
		Attendees int    `json:"attendees"`
		Floors    int    `json:"floors"`
	}
	return catalog.Descriptor{
		ID:     "OPS-030",
		Name:   "화재 대피 절차 수립",
		Domain: catalog.DomainOperations,
		Tags:   []string{"화재", "대피", "절차", "evacuation", "safety"},
		Input: schema.Schema{
			"venue_name": schema.String(),
			"attendees":  schema.Int(),
			"floors":     schema.Optional(schema.Int()),
		},
		Output: schema.Schema{
			"status": schema.String(),
			"steps":  schema.Slice(schema.String()),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainOperations},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			// One marshal per 50 attendees, minimum two.
			marshals := req.Attendees / 50
			if marshals < 2 {
				marshals = 2
			}
			steps := []any{
				fmt.Sprintf("%s 비상구 및 소화기 위치 사전 점검", req.VenueName),
				fmt.Sprintf("대피 안내 요원 %d명 배치", marshals),
				"행사 시작 전 안내 방송으로 대피 경로 공지",
				"화재 경보 시 무대 진행 즉시 중단, 질서 있는 대피 유도",
				"집결지 인원 점검 및 소방서 인계",
			}
			return map[string]any{
				"status": "planned",
				"steps":  steps,
			}, nil
		},
	}
}

func roomBlockRelease() catalog.Descriptor {
	type request struct {
		HotelName      string `json:"hotel_name"`
		RoomsToRelease int    `json:"rooms_to_release"`
		Reason         string `json:"reason"`
	}
	return catalog.Descriptor{
		ID:     "SITE-037",
		Name:   "호텔 객실 블록 해제",
		Domain: catalog.DomainSite,
		Tags:   []string{"객실", "블록", "해제", "호텔", "room"},
		Input: schema.Schema{
			"hotel_name":       schema.String(),
			"rooms_to_release": schema.Int(),
			"reason":           schema.Optional(schema.String()),
		},
		Output: schema.Schema{
			"status":   schema.String(),
			"released": schema.Int(),
		},
		Risk: catalog.Risk{
			// Released rooms go back to the hotel's open inventory and
			// cannot be re-blocked at the contracted rate.
			Irreversible:    true,
			AffectedDomains: []catalog.Domain{catalog.DomainSite, catalog.DomainFinance},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			return map[string]any{
				"status":   "released",
				"released": req.RoomsToRelease,
			}, nil
		},
	}
}

func campaignLaunch() catalog.Descriptor {
	type request struct {
		Channel string  `json:"channel"`
		Budget  float64 `json:"budget"`
		Weeks   int     `json:"weeks"`
	}
	return catalog.Descriptor{
		ID:     "MKTADV-004",
		Name:   "유료 캠페인 집행",
		Domain: catalog.DomainMarketingAdv,
		Tags:   []string{"캠페인", "광고", "집행", "campaign", "ads"},
		Input: schema.Schema{
			"channel": schema.Enum("search", "social", "display"),
			"budget":  schema.Number(),
			"weeks":   schema.Optional(schema.Int()),
		},
		Output: schema.Schema{
			"status":       schema.String(),
			"weekly_spend": schema.Number(),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainMarketingAdv, catalog.DomainFinance},
			MonetaryFields:  []string{"budget"},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			weeks := req.Weeks
			if weeks <= 0 {
				weeks = 4
			}
			return map[string]any{
				"status":       "scheduled",
				"weekly_spend": req.Budget / float64(weeks),
			}, nil
		},
	}
}

func accessPolicyUpdate() catalog.Descriptor {
	type request struct {
		Role    string   `json:"role"`
		Actions []string `json:"actions"`
	}
	return catalog.Descriptor{
		ID:     "SYS-011",
		Name:   "접근 권한 정책 변경",
		Domain: catalog.DomainSystem,
		Tags:   []string{"권한", "정책", "변경", "policy", "access"},
		Input: schema.Schema{
			"role":    schema.String(),
			"actions": schema.Slice(schema.String()),
		},
		Output: schema.Schema{
			"status": schema.String(),
		},
		Risk: catalog.Risk{
			PolicyChange:    true,
			AffectedDomains: []catalog.Domain{catalog.DomainSystem},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			if len(req.Actions) == 0 {
				return nil, fmt.Errorf("no actions to grant for role %s", req.Role)
			}
			return map[string]any{"status": "updated"}, nil
		},
	}
}

func staffCompensation() catalog.Descriptor {
	type request struct {
		Headcount int     `json:"headcount"`
		Hours     float64 `json:"hours"`
		Rate      float64 `json:"rate"`
	}
	return catalog.Descriptor{
		ID:     "HR-007",
		Name:   "행사 인력 보상 산정",
		Domain: catalog.DomainHR,
		Tags:   []string{"인력", "보상", "수당", "staffing", "pay"},
		Input: schema.Schema{
			"headcount": schema.Int(),
			"hours":     schema.Number(),
			"rate":      schema.Number(),
		},
		Output: schema.Schema{
			"status": schema.String(),
			"total":  schema.Number(),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainHR},
			MonetaryFields:  []string{"rate"},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			return map[string]any{
				"status": "calculated",
				"total":  float64(req.Headcount) * req.Hours * req.Rate,
			}, nil
		},
	}
}

func sessionPlanning() catalog.Descriptor {
	type request struct {
		Tracks   int `json:"tracks"`
		Sessions int `json:"sessions"`
		Minutes  int `json:"minutes_per_session"`
	}
	return catalog.Descriptor{
		ID:     "MTG-004",
		Name:   "세션 편성표 작성",
		Domain: catalog.DomainMeetings,
		Tags:   []string{"세션", "편성", "agenda", "트랙"},
		Input: schema.Schema{
			"tracks":              schema.Int(),
			"sessions":            schema.Int(),
			"minutes_per_session": schema.Optional(schema.Int()),
		},
		Output: schema.Schema{
			"status":        schema.String(),
			"total_minutes": schema.Int(),
		},
		Risk: catalog.Risk{
			AffectedDomains: []catalog.Domain{catalog.DomainMeetings},
		},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			var req request
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			minutes := req.Minutes
			if minutes <= 0 {
				minutes = 40
			}
			if req.Tracks <= 0 {
				return nil, fmt.Errorf("tracks must be positive, got %d", req.Tracks)
			}
			perTrack := (req.Sessions + req.Tracks - 1) / req.Tracks
			return map[string]any{
				"status":        "planned",
				"total_minutes": perTrack * minutes,
			}, nil
		},
	}
}
