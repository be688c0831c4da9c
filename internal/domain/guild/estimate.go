// Package guild holds the pure parts of guild-to-shard resolution.
package guild

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/webitel/shardscope/internal/domain/model"
)

var idPattern = regexp.MustCompile(`^\d{17,20}$`)

// ValidateID rejects anything that is not a 17–20 digit snowflake.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return &model.Error{
			Kind:    model.KindValidation,
			Op:      model.OpSearchGuild.String(),
			Message: fmt.Sprintf("invalid guild id %q: expected 17-20 digits", id),
		}
	}
	return nil
}

// EstimateShard computes id mod totalShards. It is a placement estimate,
// not a confirmation that the guild exists. totalShards below 1 is
// treated as 1. Twenty-digit ids may exceed uint64, hence big.Int.
func EstimateShard(id string, totalShards int) (int, error) {
	if err := ValidateID(id); err != nil {
		return 0, err
	}
	if totalShards < 1 {
		totalShards = 1
	}

	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return 0, &model.Error{Kind: model.KindValidation, Op: model.OpSearchGuild.String(), Message: "guild id is not numeric"}
	}
	n.Abs(n)

	mod := new(big.Int).Mod(n, big.NewInt(int64(totalShards)))
	return int(mod.Int64()), nil
}
