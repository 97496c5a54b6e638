package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"giveaway-bot/giveaway"
	"giveaway-bot/model"
	"giveaway-bot/utils"
)

// RankClient fetches member standings from the external leveling service.
// It satisfies giveaway.RankProvider.
type RankClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRankClient(cfg model.RankAPIConfig) *RankClient {
	return &RankClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  utils.GlobalHTTPClient,
	}
}

type rankResponse struct {
	Level    int `json:"level"`
	WeeklyXP int `json:"weekly_xp"`
}

func (c *RankClient) MemberRank(ctx context.Context, guildID, memberID string) (*giveaway.Rank, error) {
	url := fmt.Sprintf("%s/guilds/%s/members/%s/rank", c.baseURL, guildID, memberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rank request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rank: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unranked members simply have no standing yet.
		return &giveaway.Rank{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rank service returned status %s", resp.Status)
	}

	var body rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode rank response: %w", err)
	}
	return &giveaway.Rank{Level: body.Level, WeeklyXP: body.WeeklyXP}, nil
}
