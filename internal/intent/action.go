package intent

import "github.com/xkilldash9x/alris-cli/api/schemas"

// ToAction maps an intent and its parameters onto the structured action
// shape. It reports false for intents that prepare no action.
func ToAction(intent schemas.Intent, params map[string]any) (schemas.ActionResponse, bool) {
	if params == nil {
		params = map[string]any{}
	}
	var kind schemas.ActionType
	switch intent {
	case schemas.IntentBrowser, schemas.IntentFormFill, schemas.IntentVideoSearch, schemas.IntentVideoDirect:
		kind = schemas.ActionBrowser
	case schemas.IntentCalendar:
		kind = schemas.ActionCalendar
	case schemas.IntentEmail:
		kind = schemas.ActionEmail
	default:
		return schemas.ActionResponse{}, false
	}
	return schemas.ActionResponse{ActionType: kind, Parameters: params}, true
}
