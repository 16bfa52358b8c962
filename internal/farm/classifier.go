package farm

import (
	"regexp"
	"strconv"
	"strings"
)

// Category labels the situation a game message belongs to. A single message
// can satisfy several predicates at once; the dispatcher evaluates them in
// order rather than switching on one category.
type Category string

const (
	CategoryExploreAck   Category = "explore_ack"
	CategoryCombat       Category = "combat"
	CategoryTrade        Category = "trade"
	CategoryPetEvent     Category = "pet_event"
	CategoryCaptcha      Category = "captcha"
	CategoryEssenceFound Category = "essence_found"
	CategorySpecialRwd   Category = "special_reward"
	CategoryUnrecognized Category = "unrecognized"
)

// combatMarkers flip the in-combat flag on and off. The sword marker shows up
// in both encounter prompts and battle turns.
var combatMarkers = []string{"move", "moves", "randomly attack", "⚔️", "trader"}

// captchaPhrases cover the game's known challenge wordings.
var captchaPhrases = []string{
	"defeat before you can continue",
	"upon an ancient",
	"you like to enter",
	"select the correct number of monsters",
	"rich merchant",
	"found a village",
	"ship",
	"are few eggs",
	"you stumble upon evil mystic wizard",
}

const captchaConnections = "have incoming connections from"

// exploreAckKeywords mark any response that closes an outstanding explore wait.
var exploreAckKeywords = []string{"/explore", "threat level", "you run into", "encounter", "⚔️", "note"}

// continueKeywords mark idle outcomes after which the loop should explore again.
var continueKeywords = []string{
	"wishing fountain",
	"make a wish",
	"successfully traded with",
	"walked away",
	"exploring",
	"while",
	"you earned",
	"pocket",
	"core",
	"away with",
	"traded with",
	"merchant left",
}

// offerPhrases suppress the continue-exploring trigger while a trade offer is
// on screen.
var offerPhrases = []string{"check out the offers", "offers you"}

var alsoFoundKeywords = []string{"also found", "you get"}

var petCapturePrompts = []string{"and capture it", "to try", "you want to try"}

var rarityDiscard = []string{"rarity : rare", "rarity : common"}

var raritySpecial = []string{"rarity : epic", "rarity : crossover", "rarity : exotic", "rarity : exclusive"}

// lootItems is the catalog of drop names that open a pickup sub-menu in combat.
var lootItems = []string{
	"ring of life", "demonic seal", "insanity rune", "eternal elixir",
	"cursed sword", "flame amulet", "phantom of death", "venomous dagger",
	"resurrection lyre", "will of wind", "evasion boot", "chaotic totem",
	"iris talisman", "sensory stone", "pathbreaker veil", "frostbound prism",
	"friendship band", "unity pendant", "comrade emblem", "anguish sigil",
	"blood sigil", "hypnotic orb", "dreamer lamp", "echoing barrier", "invincible aura",
	"craftman hammer", "anti matter", "starforged aegis", "guardian mantle", "identical mask",
	"celestial shield", "devine relic", "diamond gauntlet", "lucky dice", "sukuna finger", "thunder spear",
	"philosopher stone", "devil fruit", "seaprism stone", "vivre card", "reverse blade sword", "elixir of life",
	"raphael", "hogyoku", "zanpakuto", "soul candy", "mana crystal",
}

// engageVariants lists the visually obfuscated spellings of the engage button.
var engageVariants = []string{
	"eńɢaǵe", "ⴹnɠаge", "ꮛngаge", "ɛṅgaɢe", "𝓔ṅg͜age", "𝐄ŋɡạɠe", "eṅɡaḡe",
	"εñgαge", "ẹngaɢe", "ɛńɡàɡe", "ẹɲgḁge", "eŋ͎gấɠє", "ẹ͛nɡᶏɠe", "engage",
}

var priceRe = regexp.MustCompile(`for (\d+)`)

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classify returns the first matching category for a message, evaluated in
// the same order the dispatcher reacts in. It exists for observability; the
// dispatcher itself runs every predicate because real game messages regularly
// satisfy more than one.
func Classify(text string) Category {
	t := strings.ToLower(text)

	switch {
	case strings.Contains(t, "essences"):
		return CategoryEssenceFound
	case IsCaptcha(t):
		return CategoryCaptcha
	case containsAny(t, raritySpecial):
		return CategorySpecialRwd
	case containsAny(t, petCapturePrompts) || containsAny(t, rarityDiscard):
		return CategoryPetEvent
	case strings.Contains(t, "trader"):
		return CategoryTrade
	case IsCombatState(t):
		return CategoryCombat
	case IsExploreAck(t):
		return CategoryExploreAck
	default:
		return CategoryUnrecognized
	}
}

// IsEssenceFound reports whether the message announces found essences.
func IsEssenceFound(text string) bool {
	return strings.Contains(text, "essences")
}

// IsCombatState reports whether the message places the user in combat or a
// capture attempt.
func IsCombatState(text string) bool {
	return containsAny(text, combatMarkers)
}

// IsCaptcha reports whether the message is one of the known CAPTCHA challenges.
func IsCaptcha(text string) bool {
	return containsAny(text, captchaPhrases) || strings.Contains(text, captchaConnections)
}

// IsExploreAck reports whether the message closes an outstanding explore wait.
func IsExploreAck(text string) bool {
	return containsAny(text, exploreAckKeywords)
}

// IsContinueExploring reports whether the message is an idle outcome that
// should trigger another explore. Trade offer screens are excluded so the
// trade handler gets to act first.
func IsContinueExploring(text string) bool {
	if !containsAny(text, continueKeywords) {
		return false
	}
	return !containsAny(text, offerPhrases)
}

// IsAlsoFound reports whether the message is a loot follow-up ("also found",
// "you get") that continues the explore loop.
func IsAlsoFound(text string) bool {
	return containsAny(text, alsoFoundKeywords)
}

// IsCapturePrompt reports whether the message invites a pet capture attempt.
func IsCapturePrompt(text string) bool {
	return containsAny(text, petCapturePrompts)
}

// IsDiscardRarity reports whether the captured pet is common or rare and
// should be walked away from.
func IsDiscardRarity(text string) bool {
	return containsAny(text, rarityDiscard)
}

// IsSpecialRarity reports whether the captured pet is a tier worth pausing
// farming for manual review.
func IsSpecialRarity(text string) bool {
	return containsAny(text, raritySpecial)
}

// HasLootItem reports whether the message names a droppable item from the
// catalog.
func HasLootItem(text string) bool {
	return containsAny(text, lootItems)
}

// IsEngageLabel reports whether a button label is one of the obfuscated
// engage spellings or the prestige button. Labels are compared lowercase with
// spaces stripped.
func IsEngageLabel(label string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(label), " ", "")
	if strings.Contains(normalized, "prestige") {
		return true
	}
	for _, variant := range engageVariants {
		if strings.Contains(normalized, strings.ReplaceAll(variant, " ", "")) {
			return true
		}
	}
	return false
}

// ParseOfferPrices extracts the pearl and ticket prices from a trade offer
// message. A zero price means the corresponding line was absent.
func ParseOfferPrices(text string) (pearlPrice, ticketPrice int) {
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, "pearls for"):
			pearlPrice = parsePrice(line)
		case strings.Contains(line, "tickets for"):
			ticketPrice = parsePrice(line)
		}
	}
	return pearlPrice, ticketPrice
}

func parsePrice(line string) int {
	m := priceRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	price, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return price
}
