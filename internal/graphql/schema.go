// Package graphql exposes the donation lifecycle over a GraphQL schema. The
// resolvers are thin: they pull the actor off the context, translate wire
// inputs, and delegate to the services.
package graphql

import (
	"github.com/graphql-go/graphql"

	dErrors "givingchain/pkg/domain-errors"
	"givingchain/pkg/requestcontext"

	"givingchain/internal/auth"
	"givingchain/internal/identity"
	"givingchain/internal/lifecycle"
	"givingchain/internal/registry"
	"givingchain/internal/trackable"
)

// Services are the backends the schema resolves against.
type Services struct {
	Auth       *auth.Service
	Lifecycle  *lifecycle.Service
	Recipients *registry.Recipients
}

// NewSchema builds the executable schema.
func NewSchema(svcs Services) (graphql.Schema, error) {
	statusEnum := graphql.NewEnum(graphql.EnumConfig{
		Name: "TrackableStatus",
		Values: graphql.EnumValueConfigMap{
			"Created":   &graphql.EnumValueConfig{Value: string(trackable.StatusCreated)},
			"Published": &graphql.EnumValueConfig{Value: string(trackable.StatusPublished)},
			"Accepted":  &graphql.EnumValueConfig{Value: string(trackable.StatusAccepted)},
			"PickedUp":  &graphql.EnumValueConfig{Value: string(trackable.StatusPickedUp)},
			"Delivered": &graphql.EnumValueConfig{Value: string(trackable.StatusDelivered)},
		},
	})

	addressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Address",
		Fields: graphql.Fields{
			"street":       &graphql.Field{Type: graphql.String},
			"cityStateZip": &graphql.Field{Type: graphql.String},
		},
	})

	metadataEntryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MetadataEntry",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"value": &graphql.Field{Type: jsonScalar},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"did":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"username": &graphql.Field{Type: graphql.String},
			"loggedIn": &graphql.Field{Type: graphql.Boolean},
		},
	})

	updateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackableUpdate",
		Fields: graphql.Fields{
			"did":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"timestamp": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"message":   &graphql.Field{Type: graphql.String},
			"metadata":  &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(metadataEntryType))},
			"userDid":   &graphql.Field{Type: graphql.String},
			"userName":  &graphql.Field{Type: graphql.String},
		},
	})

	updateConnectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackableUpdateConnection",
		Fields: graphql.Fields{
			"edges": &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(updateType))},
		},
	})

	collaboratorConnectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackableCollaboratorConnection",
		Fields: graphql.Fields{
			"edges": &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(userType))},
		},
	})

	trackableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trackable",
		Fields: graphql.Fields{
			"did":           &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":          &graphql.Field{Type: graphql.String},
			"image":         &graphql.Field{Type: graphql.String},
			"status":        &graphql.Field{Type: statusEnum},
			"driver":        &graphql.Field{Type: userType},
			"metadata":      &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(metadataEntryType))},
			"updates":       &graphql.Field{Type: graphql.NewNonNull(updateConnectionType)},
			"collaborators": &graphql.Field{Type: collaboratorConnectionType},
		},
	})

	appCollectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AppCollection",
		Fields: graphql.Fields{
			"did":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"trackables": &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(trackableType))},
		},
	})

	recipientType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Recipient",
		Fields: graphql.Fields{
			"did":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":         &graphql.Field{Type: graphql.String},
			"address":      &graphql.Field{Type: addressType},
			"instructions": &graphql.Field{Type: graphql.String},
		},
	})

	authPayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthPayload",
		Fields: graphql.Fields{
			"user":  &graphql.Field{Type: userType},
			"token": &graphql.Field{Type: graphql.String},
		},
	})

	addressInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AddressInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"street":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"cityStateZip": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	metadataEntryInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "MetadataEntryInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"key":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"value": &graphql.InputObjectFieldConfig{Type: jsonScalar},
		},
	})

	createTrackableInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateTrackableInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"image":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"address":      &graphql.InputObjectFieldConfig{Type: addressInput},
			"instructions": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	addUpdateInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AddUpdateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"trackable": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"message":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"metadata":  &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(metadataEntryInput))},
		},
	})

	addCollaboratorInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AddCollaboratorInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"trackable": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"username":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	acceptJobInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AcceptJobInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"user":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"trackable": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
	})

	pickupDonationInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PickupDonationInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"user":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"trackable": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"imageUrl":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	completeJobInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CompleteJobInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"user":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"trackable": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"recipient": &graphql.InputObjectFieldConfig{Type: graphql.ID},
		},
	})

	createTrackablePayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateTrackablePayload",
		Fields: graphql.Fields{
			"trackable":  &graphql.Field{Type: trackableType},
			"collection": &graphql.Field{Type: appCollectionType},
		},
	})

	addUpdatePayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AddUpdatePayload",
		Fields: graphql.Fields{
			"update": &graphql.Field{Type: graphql.NewNonNull(updateType)},
		},
	})

	addCollaboratorPayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AddCollaboratorPayload",
		Fields: graphql.Fields{
			"collaborator": &graphql.Field{Type: userType},
		},
	})

	trackablePayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackablePayload",
		Fields: graphql.Fields{
			"trackable": &graphql.Field{Type: trackableType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getTrackable": &graphql.Field{
				Type: trackableType,
				Args: graphql.FieldConfigArgument{
					"did": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					tr, err := svcs.Lifecycle.GetTrackable(p.Context, p.Args["did"].(string))
					if err != nil {
						return nil, err
					}
					return presentTrackable(tr), nil
				},
			},
			"getTrackables": &graphql.Field{
				Type: appCollectionType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					list, err := svcs.Lifecycle.ListTrackables(p.Context)
					if err != nil {
						return nil, err
					}
					trackables := make([]any, 0, len(list))
					for _, t := range list {
						trackables = append(trackables, presentTrackable(t))
					}
					return map[string]any{
						"did":        svcs.Lifecycle.CollectionDID(),
						"trackables": trackables,
					}, nil
				},
			},
			"getRecipients": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(recipientType))),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					recipients, err := svcs.Recipients.ResolveAll(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]any, 0, len(recipients))
					for _, r := range recipients {
						out = append(out, presentRecipient(r))
					}
					return out, nil
				},
			},
			"getFirstRecipient": &graphql.Field{
				Type: recipientType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					r, err := svcs.Recipients.First(p.Context)
					if err != nil {
						if dErrors.HasCode(err, dErrors.CodeNotFound) {
							return nil, nil
						}
						return nil, err
					}
					return presentRecipient(r), nil
				},
			},
			"me": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					actor := identity.ActorFrom(p.Context)
					if !actor.Authenticated() {
						return nil, nil
					}
					return presentActor(actor), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type: authPayloadType,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					result, err := svcs.Auth.Register(p.Context, p.Args["username"].(string), p.Args["password"].(string))
					if err != nil {
						return nil, err
					}
					// every account doubles as a driver candidate
					if err := svcs.Lifecycle.RegisterDriver(p.Context, result.Actor); err != nil {
						return nil, err
					}
					return map[string]any{
						"user":  presentActor(result.Actor),
						"token": result.AccessToken,
					}, nil
				},
			},
			"login": &graphql.Field{
				Type: authPayloadType,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					result, err := svcs.Auth.Login(p.Context, p.Args["username"].(string), p.Args["password"].(string))
					if err != nil {
						return nil, err
					}
					return map[string]any{
						"user":  presentActor(result.Actor),
						"token": result.AccessToken,
					}, nil
				},
			},
			"logout": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					actor := identity.ActorFrom(p.Context)
					if err := svcs.Auth.LogoutSession(p.Context, requestcontext.SessionID(p.Context)); err != nil {
						return nil, err
					}
					return map[string]any{"did": actor.DID, "loggedIn": false}, nil
				},
			},
			"createRecipient": &graphql.Field{
				Type: recipientType,
				Args: graphql.FieldConfigArgument{
					"name":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"address":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(addressInput)},
					"instructions": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					r, err := svcs.Lifecycle.CreateRecipient(p.Context,
						p.Args["name"].(string),
						p.Args["password"].(string),
						addressFromArgs(p.Args["address"]),
						p.Args["instructions"].(string),
					)
					if err != nil {
						return nil, err
					}
					return presentRecipient(r), nil
				},
			},
			"createTrackable": &graphql.Field{
				Type: createTrackablePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createTrackableInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					tr, err := svcs.Lifecycle.CreateTrackable(p.Context, identity.ActorFrom(p.Context), lifecycle.CreateTrackableInput{
						Name:         stringArg(input, "name"),
						Image:        stringArg(input, "image"),
						Address:      addressFromArgs(input["address"]),
						Instructions: stringArg(input, "instructions"),
					})
					if err != nil {
						return nil, err
					}
					return map[string]any{
						"trackable":  presentTrackable(tr),
						"collection": map[string]any{"did": svcs.Lifecycle.CollectionDID()},
					}, nil
				},
			},
			"addUpdate": &graphql.Field{
				Type: addUpdatePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addUpdateInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					tr, err := svcs.Lifecycle.AddUpdate(p.Context, identity.ActorFrom(p.Context),
						stringArg(input, "trackable"),
						stringArg(input, "message"),
						metadataFromArgs(input["metadata"]),
					)
					if err != nil {
						return nil, err
					}
					if len(tr.Updates) == 0 {
						return nil, nil
					}
					return map[string]any{
						"update": presentUpdate(tr.Updates[len(tr.Updates)-1]),
					}, nil
				},
			},
			"addCollaborator": &graphql.Field{
				Type: addCollaboratorPayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addCollaboratorInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					username := stringArg(input, "username")
					_, err := svcs.Lifecycle.AddCollaborator(p.Context, identity.ActorFrom(p.Context),
						stringArg(input, "trackable"), username)
					if err != nil {
						return nil, err
					}
					return map[string]any{
						"collaborator": map[string]any{"username": username},
					}, nil
				},
			},
			"acceptJob": &graphql.Field{
				Type: trackablePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(acceptJobInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					actor := identity.ActorFrom(p.Context)
					if err := requireSelf(actor, stringArg(input, "user")); err != nil {
						return nil, err
					}
					tr, err := svcs.Lifecycle.AcceptJob(p.Context, actor, stringArg(input, "trackable"))
					if err != nil {
						return nil, err
					}
					return map[string]any{"trackable": presentTrackable(tr)}, nil
				},
			},
			"pickupDonation": &graphql.Field{
				Type: trackablePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(pickupDonationInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					actor := identity.ActorFrom(p.Context)
					if err := requireSelf(actor, stringArg(input, "user")); err != nil {
						return nil, err
					}
					tr, err := svcs.Lifecycle.PickupDonation(p.Context, actor,
						stringArg(input, "trackable"), stringArg(input, "imageUrl"))
					if err != nil {
						return nil, err
					}
					return map[string]any{"trackable": presentTrackable(tr)}, nil
				},
			},
			"completeJob": &graphql.Field{
				Type: trackablePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(completeJobInput)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input := p.Args["input"].(map[string]any)
					actor := identity.ActorFrom(p.Context)
					if err := requireSelf(actor, stringArg(input, "user")); err != nil {
						return nil, err
					}
					tr, err := svcs.Lifecycle.CompleteJob(p.Context, actor,
						stringArg(input, "trackable"), stringArg(input, "recipient"))
					if err != nil {
						return nil, err
					}
					return map[string]any{"trackable": presentTrackable(tr)}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// requireSelf rejects a mutation whose declared actor differs from the
// authenticated one. The old client silently no-opped here; a typed error is
// the deliberate replacement.
func requireSelf(actor identity.Actor, claimedDID string) error {
	if !actor.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthenticated, "login required")
	}
	if claimedDID != actor.DID {
		return dErrors.New(dErrors.CodeUnauthorized, "cannot act on behalf of another user")
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func addressFromArgs(raw any) trackable.Address {
	m, ok := raw.(map[string]any)
	if !ok {
		return trackable.Address{}
	}
	return trackable.Address{
		Street:       stringArg(m, "street"),
		CityStateZip: stringArg(m, "cityStateZip"),
	}
}

func metadataFromArgs(raw any) []trackable.MetadataEntry {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []trackable.MetadataEntry
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key := stringArg(m, "key")
		if key == "" {
			continue
		}
		var value trackable.MetadataValue
		if s, ok := m["value"].(string); ok {
			value = trackable.TextValue(s)
		} else {
			value = trackable.MetadataValue{Kind: trackable.MetadataUnknown, Raw: m["value"]}
		}
		out = append(out, trackable.MetadataEntry{Key: key, Value: value})
	}
	return out
}
