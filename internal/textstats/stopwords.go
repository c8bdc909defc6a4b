package textstats

// stopWords holds common English function words. Tokens reach this set after
// punctuation stripping, so contractions appear without apostrophes.
var stopWords = map[string]struct{}{
	// articles and determiners
	"the": {}, "an": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"some": {}, "any": {}, "each": {}, "every": {}, "no": {}, "all": {}, "both": {},
	"such": {}, "other": {}, "another": {},

	// pronouns
	"he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "me": {}, "him": {},
	"her": {}, "us": {}, "them": {}, "my": {}, "your": {}, "his": {}, "its": {},
	"our": {}, "their": {}, "mine": {}, "yours": {}, "hers": {}, "ours": {},
	"theirs": {}, "you": {}, "myself": {}, "yourself": {}, "himself": {},
	"herself": {}, "itself": {}, "ourselves": {}, "themselves": {},
	"who": {}, "whom": {}, "whose": {}, "which": {}, "what": {},

	// auxiliary and modal verbs
	"am": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "having": {}, "do": {},
	"does": {}, "did": {}, "doing": {}, "will": {}, "would": {}, "shall": {},
	"should": {}, "can": {}, "could": {}, "may": {}, "might": {}, "must": {},

	// contractions
	"im": {}, "ive": {}, "id": {}, "ill": {}, "youre": {}, "youve": {}, "hes": {},
	"shes": {}, "weve": {}, "theyre": {}, "theyve": {}, "dont": {},
	"doesnt": {}, "didnt": {}, "isnt": {}, "arent": {}, "wasnt": {}, "werent": {},
	"cant": {}, "couldnt": {}, "wont": {}, "wouldnt": {}, "shouldnt": {},
	"hasnt": {}, "havent": {}, "hadnt": {}, "thats": {}, "theres": {},

	// conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "so": {}, "yet": {}, "if": {},
	"because": {}, "although": {}, "while": {}, "than": {}, "then": {},
	"when": {}, "where": {}, "whether": {}, "unless": {}, "until": {},

	// prepositions
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {},
	"by": {}, "from": {}, "about": {}, "into": {}, "onto": {}, "over": {},
	"under": {}, "above": {}, "below": {}, "between": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "against": {}, "among": {},
	"within": {}, "without": {}, "up": {}, "down": {}, "out": {}, "off": {},
	"upon": {}, "as": {}, "via": {}, "per": {},

	// common adverbs
	"not": {}, "very": {}, "too": {}, "also": {}, "just": {}, "only": {},
	"there": {}, "here": {}, "how": {}, "why": {}, "again": {}, "more": {},
	"most": {}, "own": {}, "same": {}, "few": {}, "once": {}, "now": {},
}

func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
