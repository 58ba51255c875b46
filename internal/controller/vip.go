package controller

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/bwcc-clan/polebot-go/internal/model"
)

// farFutureExpiry is the sentinel the upstream VIP file uses to mean "no
// expiry" (spec's supplemented vip feature, grounded on the original
// implementation's vip_manager.py: any expiry on or after 2999-12-30 UTC is
// normalized to nil).
var farFutureExpiry = time.Date(2999, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseVIPList decodes the raw download_vips() document into VipInfo rows.
// Each line has the form "<player_id> <name with spaces> <iso8601 expiry>";
// since names may contain spaces, the id is taken up to the first space and
// the expiry from the last space onward.
func parseVIPList(doc string) []model.VipInfo {
	var out []model.VipInfo
	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		vip, err := parseVIPLine(line)
		if err != nil {
			continue
		}
		out = append(out, vip)
	}
	return out
}

func parseVIPLine(line string) (model.VipInfo, error) {
	pos1 := strings.Index(line, " ")
	pos2 := strings.LastIndex(line, " ")
	if pos1 < 0 || pos2 <= pos1 {
		return model.VipInfo{}, fmt.Errorf("controller: malformed vip line %q", line)
	}

	playerID := line[:pos1]
	name := line[pos1+1 : pos2]
	expiryText := line[pos2+1:]

	expiry, err := time.Parse(time.RFC3339, expiryText)
	if err != nil {
		return model.VipInfo{}, fmt.Errorf("controller: parsing vip expiry %q: %w", expiryText, err)
	}

	vip := model.VipInfo{PlayerID: playerID, PlayerName: name, VipExpiry: &expiry}
	if !expiry.Before(farFutureExpiry) {
		vip.VipExpiry = nil
	}
	return vip, nil
}
