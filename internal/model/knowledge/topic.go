package knowledge

// Topic is one pre-approved informational article the assistant may quote.
// Only vetted copy goes in here; the tool layer never returns anything that
// did not come from this table.
type Topic struct {
	ID         string `json:"id"`
	Definition string `json:"definition"`
	Note       string `json:"note,omitempty"`
}

// Seed provides the launch set of trusted topics.
func Seed() []Topic {
	return []Topic{
		{
			ID:         "stress",
			Definition: "Stress is a feeling of emotional or physical tension. It can come from any event or thought that makes you feel frustrated, angry, or nervous. Stress is your body's reaction to a challenge or demand.",
			Note:       "In short bursts, stress can be positive, such as when it helps you avoid danger or meet a deadline. But when stress lasts for a long time, it may harm your health.",
		},
		{
			ID:         "mindfulness",
			Definition: "Mindfulness is a type of meditation in which you focus on being intensely aware of what you're seeing and feeling in the moment, without interpretation or judgment.",
			Note:       "Practicing mindfulness involves breathing methods, guided imagery, and other practices to relax the body and mind and help reduce stress. Many people explore mindfulness as a way to become more aware of their thoughts and feelings.",
		},
	}
}
