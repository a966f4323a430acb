package commands

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeFilter  Type = "filter"
	TypeSort    Type = "sort"
	TypeRefresh Type = "refresh"
	TypeClear   Type = "clear"
	TypeDone    Type = "done"
	TypeAdd     Type = "add"
	TypeDue     Type = "due"
	TypeRename  Type = "rename"
	TypeDesc    Type = "desc"
	TypeRemove  Type = "rm"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterActive  FilterMode = "active"
	FilterOverdue FilterMode = "overdue"
	FilterUrgent  FilterMode = "urgent"
	FilterDone    FilterMode = "done"
)

type SortField string

const (
	SortDue      SortField = "due"
	SortCreated  SortField = "created"
	SortTitle    SortField = "title"
	SortProgress SortField = "progress"
)

type FilterArgs struct {
	Mode FilterMode
}

type SortArgs struct {
	Field SortField
	Desc  bool
}

// AddArgs creates a task. The due date is the optional trailing "@when".
type AddArgs struct {
	Title string
	Due   *When
}

type DueArgs struct {
	When When
}

// TextArgs carries the free text of rename and desc.
type TextArgs struct {
	Text string
}

type Command struct {
	Type   Type
	Raw    string
	Filter *FilterArgs
	Sort   *SortArgs
	Add    *AddArgs
	Due    *DueArgs
	Text   *TextArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeFilter:
		return parseFilter(input, args)
	case TypeSort:
		return parseSort(input, args)
	case TypeAdd:
		return parseAdd(input, args)
	case TypeDue:
		if len(args) != 1 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "due requires one of none|<duration>|<date>|<date>T<hh:mm>|<hh:mm>"}
		}
		when, err := ParseWhen(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeDue, Raw: input, Due: &DueArgs{When: when}}, nil
	case TypeRename:
		if len(args) == 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "rename requires a title"}
		}
		return Command{Type: TypeRename, Raw: input, Text: &TextArgs{Text: strings.Join(args, " ")}}, nil
	case TypeDesc:
		return Command{Type: TypeDesc, Raw: input, Text: &TextArgs{Text: strings.Join(args, " ")}}, nil
	case TypeRefresh, TypeClear, TypeDone, TypeRemove:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes no arguments", head)}
		}
		return Command{Type: Type(head), Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseFilter(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "filter requires one of all|active|overdue|urgent|done"}
	}
	mode := FilterMode(strings.ToLower(args[0]))
	switch mode {
	case FilterAll, FilterActive, FilterOverdue, FilterUrgent, FilterDone:
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown filter: %s", args[0])}
	}
	return Command{Type: TypeFilter, Raw: raw, Filter: &FilterArgs{Mode: mode}}, nil
}

func parseSort(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "sort requires a field and optional asc|desc"}
	}
	field := SortField(strings.ToLower(args[0]))
	switch field {
	case SortDue, SortCreated, SortTitle, SortProgress:
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown sort field: %s", args[0])}
	}
	desc := false
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "asc":
		case "desc":
			desc = true
		default:
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown sort order: %s", args[1])}
		}
	}
	return Command{Type: TypeSort, Raw: raw, Sort: &SortArgs{Field: field, Desc: desc}}, nil
}

func parseAdd(raw string, args []string) (Command, error) {
	var due *When
	if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "@") {
		when, err := ParseWhen(strings.TrimPrefix(args[n-1], "@"))
		if err != nil {
			return Command{}, err
		}
		due = &when
		args = args[:n-1]
	}
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a title, e.g. add Write report @2h"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Title: strings.Join(args, " "), Due: due}}, nil
}
