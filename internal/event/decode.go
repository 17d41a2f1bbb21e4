package event

import (
	"encoding/json"
	"fmt"
)

// DecodeCommand rebuilds a logged command from its stored type discriminator
// and JSON payload. The payload is the direct marshaling of the command
// struct, so decode is symmetric with what the engine logged.
func DecodeCommand(commandType string, data []byte) (Command, error) {
	var cmd Command
	switch commandType {
	case "RecordFill":
		cmd = &RecordFill{}
	case "OpenPosition":
		cmd = &OpenPosition{}
	case "ClosePosition":
		cmd = &ClosePosition{}
	case "RefreshFunding":
		cmd = &RefreshFunding{}
	case "ApplyFunding":
		cmd = &ApplyFunding{}
	case "LiquidatePosition":
		cmd = &LiquidatePosition{}
	case "SettleMarket":
		cmd = &SettleMarket{}
	case "SettlePosition":
		cmd = &SettlePosition{}
	case "QueueSettlement":
		cmd = &QueueSettlement{}
	case "ProcessSettlements":
		cmd = &ProcessSettlements{}
	case "AwardPoints":
		cmd = &AwardPoints{}
	case "ClaimRewards":
		cmd = &ClaimRewards{}
	case "ListMarket":
		cmd = &ListMarket{}
	case "AdminUpdate":
		cmd = &AdminUpdate{}
	default:
		return nil, fmt.Errorf("unknown command type %q", commandType)
	}
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", commandType, err)
	}
	return cmd, nil
}
