// board/board.go
package board

import (
	"github.com/serpientes/gameserver/models"
)

const DefaultSize = 100

type HazardKind int

const (
	HazardNone HazardKind = iota
	HazardLadder
	HazardSnake
	HazardQuizSnake
)

// Question is a quiz gate on a snake head. Answering wrong sends the
// player to Tail; answering right leaves them on the head.
type Question struct {
	Profesor string
	Equation string
	Options  map[string]string
	Correct  string
	Tail     int
}

// Hazard describes what sits at a board position. From is the trigger
// position (ladder bottom or snake head), To the destination.
type Hazard struct {
	Kind     HazardKind
	From     int
	To       int
	Question *Question
}

// Board is the static hazard layout for one game. A position is the
// head of at most one hazard.
type Board struct {
	GameID    string
	size      int
	ladders   map[int]int
	snakes    map[int]int
	questions map[int]Question
}

// Generator produces boards from the fixed hazard tables. The layout is
// configuration data, identical for every game.
type Generator struct {
	size int
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{size: size}
}

// quizBank keys each quiz-gated snake by its head position.
var quizBank = map[int]Question{
	23: {Profesor: "Huanca", Equation: "5x-3=12", Options: map[string]string{"A": "x=4", "B": "x=3", "C": "x=2"}, Correct: "B", Tail: 4},
	30: {Profesor: "Nancy", Equation: "2x + 7 = 19", Options: map[string]string{"A": "x=5", "B": "x=6", "C": "x=7"}, Correct: "B", Tail: 8},
	33: {Profesor: "Guerra", Equation: "4x - 5 = 15", Options: map[string]string{"A": "x=3", "B": "x=4", "C": "x=5"}, Correct: "C", Tail: 26},
	40: {Profesor: "Vladimir", Equation: "x/2 + 3 = 9", Options: map[string]string{"A": "x=10", "B": "x=12", "C": "x=14"}, Correct: "B", Tail: 22},
	53: {Profesor: "Infantas", Equation: "10 - 2x = 4", Options: map[string]string{"A": "x=2", "B": "x=4", "C": "x=3"}, Correct: "C", Tail: 49},
	56: {Profesor: "Melisa", Equation: "3(x - 2) = 15", Options: map[string]string{"A": "x=6", "B": "x=7", "C": "x=8"}, Correct: "B", Tail: 36},
	64: {Profesor: "Ulises", Equation: "6x = 4x + 10", Options: map[string]string{"A": "x=5", "B": "x=4", "C": "x=3"}, Correct: "A", Tail: 58},
	89: {Profesor: "Jose Andres", Equation: "8x + 1 = 41", Options: map[string]string{"A": "x=4", "B": "x=5", "C": "x=6"}, Correct: "B", Tail: 71},
	94: {Profesor: "Bojanic", Equation: "x + 11 = 3x - 1", Options: map[string]string{"A": "x=6", "B": "x=5", "C": "x=4"}, Correct: "A", Tail: 74},
	99: {Profesor: "Claudio", Equation: "x/4 + 2 = 6", Options: map[string]string{"A": "x=12", "B": "x=16", "C": "x=20"}, Correct: "B", Tail: 78},
}

var ladderTable = map[int]int{
	6:  14,
	13: 28,
	32: 50,
	42: 60,
	54: 69,
	65: 86,
	84: 96,
}

// Generate builds the board for a game.
func (g *Generator) Generate(gameID string) *Board {
	b := &Board{
		GameID:    gameID,
		size:      g.size,
		ladders:   make(map[int]int, len(ladderTable)),
		snakes:    make(map[int]int, len(quizBank)),
		questions: make(map[int]Question, len(quizBank)),
	}
	for bottom, top := range ladderTable {
		b.ladders[bottom] = top
	}
	for head, q := range quizBank {
		b.snakes[head] = q.Tail
		b.questions[head] = q
	}
	return b
}

func (g *Generator) Size() int {
	return g.size
}

func (b *Board) Size() int {
	return b.size
}

// HazardAt returns the hazard whose trigger is at position, if any.
func (b *Board) HazardAt(position int) Hazard {
	if top, ok := b.ladders[position]; ok {
		return Hazard{Kind: HazardLadder, From: position, To: top}
	}
	if tail, ok := b.snakes[position]; ok {
		if q, gated := b.questions[position]; gated {
			return Hazard{Kind: HazardQuizSnake, From: position, To: tail, Question: &q}
		}
		return Hazard{Kind: HazardSnake, From: position, To: tail}
	}
	return Hazard{Kind: HazardNone, From: position, To: position}
}

// QuestionAt returns the quiz question gating the snake at position.
func (b *Board) QuestionAt(position int) (Question, bool) {
	q, ok := b.questions[position]
	return q, ok
}

// ValidateAnswer checks an answer key against the question at position.
// Unknown positions are never correct.
func (b *Board) ValidateAnswer(position int, answer string) bool {
	q, ok := b.questions[position]
	return ok && q.Correct == answer
}

// ValidatePosition reports whether a resting position is inside the board.
func (b *Board) ValidatePosition(position int) bool {
	return position >= 0 && position <= b.size
}

// State renders the layout for game snapshots, endpoints sorted ascending.
func (b *Board) State() models.BoardState {
	state := models.BoardState{
		Size:    b.size,
		Snakes:  make([]models.SnakeSpan, 0, len(b.snakes)),
		Ladders: make([]models.LadderSpan, 0, len(b.ladders)),
	}
	for head := 1; head <= b.size; head++ {
		if tail, ok := b.snakes[head]; ok {
			_, gated := b.questions[head]
			state.Snakes = append(state.Snakes, models.SnakeSpan{Head: head, Tail: tail, HasQuiz: gated})
		}
		if top, ok := b.ladders[head]; ok {
			state.Ladders = append(state.Ladders, models.LadderSpan{Bottom: head, Top: top})
		}
	}
	return state
}
