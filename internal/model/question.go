package model

// QuestionType enumerates the supported question kinds. Each type carries
// its own answer shape: single_choice an option index, code_challenge a
// source string, fill_blank a string per blank, match_pairs a left/right
// pair per row, ordered_blocks the block texts in the chosen order.
type QuestionType string

const (
	QuestionTypeSingleChoice  QuestionType = "single_choice"
	QuestionTypeCodeChallenge QuestionType = "code_challenge"
	QuestionTypeFillBlank     QuestionType = "fill_blank"
	QuestionTypeMatchPairs    QuestionType = "match_pairs"
	QuestionTypeOrderedBlocks QuestionType = "ordered_blocks"
)

// Option is one selectable choice of a single_choice question.
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Pair is one left/right row of a match_pairs question. In the canonical
// definition Right holds the correct match for Left.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a single exam question with its answer key. Immutable for
// the lifetime of any session against its exam.
type Question struct {
	ID     string       `json:"id"`
	Type   QuestionType `json:"type"`
	Prompt string       `json:"prompt"`
	Points float64      `json:"points"`

	// single_choice
	Options       []Option `json:"options,omitempty"`
	CorrectOption int      `json:"correct_option,omitempty"`

	// code_challenge
	Language     string `json:"language,omitempty"`
	CodeTemplate string `json:"code_template,omitempty"`
	Hint         string `json:"hint,omitempty"`

	// fill_blank
	BlankText    string   `json:"blank_text,omitempty"`
	BlankAnswers []string `json:"blank_answers,omitempty"`

	// match_pairs
	Pairs []Pair `json:"pairs,omitempty"`

	// ordered_blocks, canonical order
	Blocks      []string `json:"blocks,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
}

// QuestionForStudent is a question with the answer key stripped. Pair
// rights and block order are shuffled before delivery so the payload
// never leaks the solution.
type QuestionForStudent struct {
	ID     string       `json:"id"`
	Type   QuestionType `json:"type"`
	Prompt string       `json:"prompt"`
	Points float64      `json:"points"`

	Options      []Option `json:"options,omitempty"`
	Language     string   `json:"language,omitempty"`
	CodeTemplate string   `json:"code_template,omitempty"`
	Hint         string   `json:"hint,omitempty"`
	BlankText    string   `json:"blank_text,omitempty"`
	BlankCount   int      `json:"blank_count,omitempty"`
	PairLefts    []string `json:"pair_lefts,omitempty"`
	PairRights   []string `json:"pair_rights,omitempty"`
	Blocks       []string `json:"blocks,omitempty"`
	Instruction  string   `json:"instruction,omitempty"`
}
