package farm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Category
	}{
		{
			name:     "essences found",
			text:     "You also found 3 Essences in the chest!",
			expected: CategoryEssenceFound,
		},
		{
			name:     "captcha village",
			text:     "You found a village in the distance.",
			expected: CategoryCaptcha,
		},
		{
			name:     "captcha connections",
			text:     "We have incoming connections from your account.",
			expected: CategoryCaptcha,
		},
		{
			name:     "special rarity pet",
			text:     "Rarity : Epic\nA glowing creature stares at you.",
			expected: CategorySpecialRwd,
		},
		{
			name:     "capture prompt",
			text:     "Do you want to try and capture it?",
			expected: CategoryPetEvent,
		},
		{
			name:     "trader",
			text:     "You explore and find a Trader!",
			expected: CategoryTrade,
		},
		{
			name:     "combat turn",
			text:     "The goblin moves closer and prepares to strike.",
			expected: CategoryCombat,
		},
		{
			name:     "explore acknowledgement",
			text:     "Threat Level 3! You spot a wild beast.",
			expected: CategoryExploreAck,
		},
		{
			name:     "unrecognized chatter",
			text:     "Good luck out there, adventurer!",
			expected: CategoryUnrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.text))
		})
	}
}

func TestIsEngageLabel(t *testing.T) {
	assert.True(t, IsEngageLabel("Engage"))
	assert.True(t, IsEngageLabel("E N G A G E"))
	assert.True(t, IsEngageLabel("εñgαge"))
	assert.True(t, IsEngageLabel("𝐄ŋɡạɠe"))
	assert.True(t, IsEngageLabel("⭐ Prestige"))

	assert.False(t, IsEngageLabel("Run"))
	assert.False(t, IsEngageLabel("Walk Away"))
	assert.False(t, IsEngageLabel(""))
}

func TestIsContinueExploringExcludesOffers(t *testing.T) {
	assert.True(t, IsContinueExploring("while exploring you earned 20 gold"))
	assert.True(t, IsContinueExploring("you walked away from the beast"))

	// offer screens are the trade handler's business
	assert.False(t, IsContinueExploring("the trader offers you: 20 pearls for 15"))
	assert.False(t, IsContinueExploring("check out the offers while they last"))
}

func TestParseOfferPrices(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		expectedPearl  int
		expectedTicket int
	}{
		{
			name:          "pearls only",
			text:          "The Trader offers you:\n20 pearls for 15 gold",
			expectedPearl: 15,
		},
		{
			name:           "tickets only",
			text:           "The Trader offers you:\n5 tickets for 480 gold",
			expectedTicket: 480,
		},
		{
			name:           "both lines",
			text:           "10 pearls for 200\n3 tickets for 450",
			expectedPearl:  200,
			expectedTicket: 450,
		},
		{
			name: "no offer lines",
			text: "The Trader waves you over.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pearl, ticket := ParseOfferPrices(strings.ToLower(tt.text))
			assert.Equal(t, tt.expectedPearl, pearl)
			assert.Equal(t, tt.expectedTicket, ticket)
		})
	}
}

func TestHasLootItem(t *testing.T) {
	assert.True(t, HasLootItem("you found a cursed sword on the ground"))
	assert.True(t, HasLootItem("a mana crystal hums quietly"))
	assert.False(t, HasLootItem("you found a rusty spoon"))
}
